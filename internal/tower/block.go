// Package tower provides the block model, block placement, and the stability
// simulation that decides when a tower collapses.
package tower

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/affirmation-tower/internal/cards"
)

// Kind is the quality of a block produced by a swipe.
type Kind string

const (
	KindStable   Kind = "STABLE"
	KindUnstable Kind = "UNSTABLE"
)

// Block geometry. Width is the only field that marks a block as unstable.
const (
	WidthStable   = 100
	WidthUnstable = 120

	ColorStable   = "bg-emerald-500"
	ColorUnstable = "bg-slate-600"

	unstableMinOffset   = 40.0 // Unstable blocks land at least this far off center
	unstableSpread      = 40.0
	unstableRotation    = 15.0 // Full range in degrees, centered on 0
	stableRotation      = 2.0
	stableCorrection    = 1.5 // Pull-back factor against the current lean
	stableMaxCorrection = 35.0
	stableJitter        = 5.0
)

// Block is one segment of the tower.
type Block struct {
	ID       string         `json:"id"`
	CardID   string         `json:"cardId"`
	Text     string         `json:"text"`
	Category cards.Category `json:"category"`
	X        float64        `json:"x"`        // Horizontal offset from tower center
	Rotation float64        `json:"rotation"` // Degrees
	Width    int            `json:"width"`
	Color    string         `json:"color"`
}

// Unstable reports whether the block is a wide, destabilizing block.
func (b Block) Unstable() bool {
	return b.Width > WidthStable
}

// Kind returns the block's quality as derived from its width.
func (b Block) Kind() Kind {
	if b.Unstable() {
		return KindUnstable
	}
	return KindStable
}

// Place creates the block for card on top of existing.
// Stable blocks counter-balance the tower; unstable blocks land far off center
// on a random side regardless of history.
func Place(kind Kind, card cards.Card, existing []Block, rng *rand.Rand) Block {
	b := Block{
		ID:       uuid.NewString(),
		CardID:   card.ID,
		Text:     card.Text,
		Category: card.Category,
	}

	if kind == KindUnstable {
		sign := -1.0
		if rng.Float64() > 0.5 {
			sign = 1.0
		}
		b.X = sign * (unstableMinOffset + rng.Float64()*unstableSpread)
		b.Rotation = (rng.Float64() - 0.5) * unstableRotation
		b.Width = WidthUnstable
		b.Color = ColorUnstable
		return b
	}

	correction := -CenterOfMass(existing) * stableCorrection
	correction = math.Max(-stableMaxCorrection, math.Min(stableMaxCorrection, correction))
	b.X = correction + (rng.Float64()-0.5)*stableJitter
	b.Rotation = (rng.Float64() - 0.5) * stableRotation
	b.Width = WidthStable
	b.Color = ColorStable
	return b
}

// CenterOfMass returns the mean horizontal offset of blocks, or 0 for an empty tower.
func CenterOfMass(blocks []Block) float64 {
	if len(blocks) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range blocks {
		sum += b.X
	}
	return sum / float64(len(blocks))
}
