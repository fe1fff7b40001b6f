package layer

// Masking marks timesteps whose every feature equals Value as padding.
type Masking struct {
	Value float64
}

// NewMasking creates a masking layer for the given sentinel.
func NewMasking(value float64) Masking {
	return Masking{Value: value}
}

// Mask returns, per timestep, whether the step carries data.
func (m Masking) Mask(seq [][]float64) []bool {
	keep := make([]bool, len(seq))
	for t, step := range seq {
		for _, v := range step {
			if v != m.Value {
				keep[t] = true
				break
			}
		}
	}
	return keep
}
