package tower

import "math"

const (
	// CollapseThreshold is the number of unstable blocks, anywhere in the
	// tower, at which it topples.
	CollapseThreshold = 3

	// DampeningHeight is the block count at which low-tower dampening ends.
	DampeningHeight = 8

	swayGain      = 1.5
	dampeningMix  = 0.8
	collapsedSway = 90.0 // Full topple, in degrees
)

// Stability is the derived balance state of a tower.
type Stability struct {
	BlockCount    int     `json:"blockCount"`
	UnstableCount int     `json:"unstableCount"`
	CenterOfMassX float64 `json:"centerOfMassX"`
	Imbalance     float64 `json:"imbalance"`
	Sway          float64 `json:"sway"`
	Collapsed     bool    `json:"collapsed"`
}

// Compute derives sway and collapse from blocks. It is a pure function of
// its input and is re-run after every block that is added.
func Compute(blocks []Block) Stability {
	s := Stability{BlockCount: len(blocks)}
	if len(blocks) == 0 {
		return s
	}

	for _, b := range blocks {
		if b.Unstable() {
			s.UnstableCount++
		}
	}

	s.CenterOfMassX = CenterOfMass(blocks)
	s.Imbalance = math.Abs(s.CenterOfMassX)

	sign := 1.0
	if s.CenterOfMassX < 0 {
		sign = -1.0
	}

	dampening := math.Max(0, 1-float64(len(blocks))/DampeningHeight)
	s.Sway = sign * s.Imbalance * (1 - dampening*dampeningMix) * swayGain

	if s.UnstableCount >= CollapseThreshold {
		s.Collapsed = true
		s.Sway = sign * collapsedSway
	}
	return s
}
