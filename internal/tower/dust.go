package tower

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	DustParticles = 12

	dustWidth    = 200.0 // Particles spread across [-100, 100)
	dustRise     = 50.0  // and rise up to 50 above the impact line
	dustStep     = 0.73  // Sample spacing along the noise field
	dustRowShift = 17.3  // Offset between the x and y sample rows
)

// Particle is one cosmetic dust puff spawned when a tower hits the ground.
type Particle struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Dust scatters impact particles by sampling a simplex noise field seeded
// per collapse.
func Dust(seed int64) []Particle {
	noise := opensimplex.NewNormalized(seed)

	particles := make([]Particle, DustParticles)
	for i := range particles {
		t := float64(i) * dustStep
		particles[i] = Particle{
			ID: i,
			X:  (noise.Eval2(t, 0) - 0.5) * dustWidth,
			Y:  -noise.Eval2(t, dustRowShift) * dustRise,
		}
	}
	return particles
}
