package cards

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed data/cards.json
var catalogFS embed.FS

const catalogFile = "data/cards.json"

// Catalog is the fixed set of cards available to the deck builder.
type Catalog struct {
	cards []Card
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		raw, err := catalogFS.ReadFile(catalogFile)
		if err != nil {
			defaultErr = fmt.Errorf("read embedded catalog: %w", err)
			return
		}
		defaultCatalog, defaultErr = ParseCatalog(raw)
	})
	return defaultCatalog, defaultErr
}

// ParseCatalog decodes a JSON array of cards and validates it.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var list []Card
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(list)
}

// NewCatalog validates cards and wraps them in a Catalog.
// Every card needs a unique id, non-empty text, and a category owned by its type.
func NewCatalog(list []Card) (*Catalog, error) {
	seen := make(map[string]bool, len(list))
	for i, c := range list {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("card %d: empty id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("card %s: duplicate id", c.ID)
		}
		seen[c.ID] = true

		if c.Type != TypeNegative && c.Type != TypeAffirmation {
			return nil, fmt.Errorf("card %s: unknown type %q", c.ID, c.Type)
		}
		owner, ok := c.Category.TypeOf()
		if !ok {
			return nil, fmt.Errorf("card %s: unknown category %q", c.ID, c.Category)
		}
		if owner != c.Type {
			return nil, fmt.Errorf("card %s: category %s belongs to %s, not %s", c.ID, c.Category, owner, c.Type)
		}
		if strings.TrimSpace(c.Text) == "" {
			return nil, fmt.Errorf("card %s: empty text", c.ID)
		}
	}

	cards := make([]Card, len(list))
	copy(cards, list)
	return &Catalog{cards: cards}, nil
}

// Len returns the number of cards in the catalog.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// OfType returns a copy of every card of the given type, in catalog order.
func (c *Catalog) OfType(t CardType) []Card {
	var out []Card
	for _, card := range c.cards {
		if card.Type == t {
			out = append(out, card)
		}
	}
	return out
}

// Lookup finds a card by id.
func (c *Catalog) Lookup(id string) (Card, bool) {
	for _, card := range c.cards {
		if card.ID == id {
			return card, true
		}
	}
	return Card{}, false
}
