// Package cards provides the static card catalog and the per-session deck builder.
package cards

// CardType separates negative thoughts from affirmations.
type CardType string

const (
	TypeNegative    CardType = "NEGATIVE"
	TypeAffirmation CardType = "AFFIRMATION"
)

// Category is the theme a card belongs to. Each category is owned by exactly one CardType.
type Category string

// Negative categories.
const (
	CategoryDoubt         Category = "Doubt"
	CategoryComparison    Category = "Comparison"
	CategoryImposter      Category = "Imposter"
	CategoryRejection     Category = "Rejection"
	CategoryPerfectionism Category = "Perfectionism"
)

// Affirmation categories.
const (
	CategoryGrowth     Category = "Growth"
	CategoryValue      Category = "Value"
	CategoryResilience Category = "Resilience"
	CategoryProcess    Category = "Process"
	CategoryClarity    Category = "Clarity"
	CategoryGratitude  Category = "Gratitude"
)

var categoryTypes = map[Category]CardType{
	CategoryDoubt:         TypeNegative,
	CategoryComparison:    TypeNegative,
	CategoryImposter:      TypeNegative,
	CategoryRejection:     TypeNegative,
	CategoryPerfectionism: TypeNegative,

	CategoryGrowth:     TypeAffirmation,
	CategoryValue:      TypeAffirmation,
	CategoryResilience: TypeAffirmation,
	CategoryProcess:    TypeAffirmation,
	CategoryClarity:    TypeAffirmation,
	CategoryGratitude:  TypeAffirmation,
}

// TypeOf returns the card type that owns a category.
func (c Category) TypeOf() (CardType, bool) {
	t, ok := categoryTypes[c]
	return t, ok
}

// Card is a single swipeable prompt. Cards are immutable once loaded.
type Card struct {
	ID        string   `json:"id"`
	Type      CardType `json:"type"`
	Text      string   `json:"text"`
	Category  Category `json:"category"`
	Rationale string   `json:"rationale,omitempty"`
}

// Mode selects the deck size for a session.
type Mode string

const (
	ModeDaily Mode = "DAILY"
	ModeFree  Mode = "FREE"
)

const (
	DeckSizeDaily = 12
	DeckSizeFree  = 30 // Larger deck for free play

	// NegativeShare is the target fraction of negative cards, rounded down.
	NegativeShare = 0.4
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDaily || m == ModeFree
}

// DeckSize returns the fixed deck length for a mode.
func (m Mode) DeckSize() int {
	if m == ModeFree {
		return DeckSizeFree
	}
	return DeckSizeDaily
}
