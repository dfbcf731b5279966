package cards

import (
	"math"
	"math/rand"
)

// Deck is the ordered sequence of cards drawn for one session.
type Deck []Card

// Counts returns how many negative and affirmation cards the deck holds.
func (d Deck) Counts() (negatives, affirmations int) {
	for _, c := range d {
		if c.Type == TypeNegative {
			negatives++
		} else {
			affirmations++
		}
	}
	return negatives, affirmations
}

// Composition returns the target negative/affirmation split for a deck size.
// The negative share is rounded down so any rounding favors affirmations.
func Composition(size int) (negatives, affirmations int) {
	negatives = int(math.Floor(float64(size) * NegativeShare))
	return negatives, size - negatives
}

// NewDeck builds a shuffled, ratio-balanced deck for mode.
//
// Both type pools are shuffled independently, truncated to their share, then
// concatenated and shuffled again to interleave types. A pool smaller than its
// share contributes everything it has.
func NewDeck(catalog *Catalog, mode Mode, rng *rand.Rand) Deck {
	negCount, affCount := Composition(mode.DeckSize())

	negatives := take(shuffle(catalog.OfType(TypeNegative), rng), negCount)
	affirmations := take(shuffle(catalog.OfType(TypeAffirmation), rng), affCount)

	deck := make([]Card, 0, len(negatives)+len(affirmations))
	deck = append(deck, negatives...)
	deck = append(deck, affirmations...)
	return Deck(shuffle(deck, rng))
}

// shuffle is an in-place Fisher-Yates permutation; it returns its argument.
func shuffle(cards []Card, rng *rand.Rand) []Card {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards
}

func take(cards []Card, n int) []Card {
	if n > len(cards) {
		n = len(cards)
	}
	return cards[:n]
}
