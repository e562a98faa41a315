package placement

// Alpha is the smoothing factor of the placement filter. Smaller is steadier.
// It is fixed for the life of a smoother.
const Alpha = 0.2

// Smoother is a first-order low-pass filter over garment placements.
// It starts at the zero placement and is not safe for concurrent use; it is
// owned by a single frame loop.
type Smoother struct {
	alpha float64
	prev  Placement
}

// NewSmoother creates a new Smoother using Alpha.
func NewSmoother() *Smoother {
	return &Smoother{alpha: Alpha}
}

// Update moves the state toward raw and returns the new state.
func (s *Smoother) Update(raw Placement) Placement {
	s.prev = Placement{
		CX: smooth(s.prev.CX, raw.CX, s.alpha),
		CY: smooth(s.prev.CY, raw.CY, s.alpha),
		W:  smooth(s.prev.W, raw.W, s.alpha),
		H:  smooth(s.prev.H, raw.H, s.alpha),
	}
	return s.prev
}

// State returns the most recent smoothed placement.
func (s *Smoother) State() Placement {
	return s.prev
}

// Reset returns the filter to the zero placement.
func (s *Smoother) Reset() {
	s.prev = Placement{}
}

func smooth(prev, raw, alpha float64) float64 {
	return prev + (raw-prev)*alpha
}
