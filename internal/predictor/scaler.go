package predictor

import "math"

// Scaler standardizes features with a running mean and population variance.
type Scaler struct {
	Count int       `json:"count"`
	Mean  []float64 `json:"mean"`

	// M2 is the running sum of squared deviations per feature.
	M2 []float64 `json:"m2"`
}

// NewScaler creates an empty scaler for n features.
func NewScaler(n int) *Scaler {
	return &Scaler{Mean: make([]float64, n), M2: make([]float64, n)}
}

// PartialFit folds a batch into the running statistics.
func (s *Scaler) PartialFit(batch [][]float64) {
	for _, x := range batch {
		s.Count++
		n := float64(s.Count)
		for j, v := range x {
			delta := v - s.Mean[j]
			s.Mean[j] += delta / n
			s.M2[j] += delta * (v - s.Mean[j])
		}
	}
}

// Scale returns the per-feature standard deviation; zero-variance features scale by 1.
func (s *Scaler) Scale() []float64 {
	out := make([]float64, len(s.Mean))
	for j := range out {
		out[j] = 1
		if s.Count == 0 {
			continue
		}
		if std := math.Sqrt(s.M2[j] / float64(s.Count)); std > 0 {
			out[j] = std
		}
	}
	return out
}

// Transform standardizes a batch without changing the statistics.
func (s *Scaler) Transform(batch [][]float64) [][]float64 {
	scale := s.Scale()
	out := make([][]float64, len(batch))
	for i, x := range batch {
		row := make([]float64, len(x))
		for j, v := range x {
			row[j] = (v - s.Mean[j]) / scale[j]
		}
		out[i] = row
	}
	return out
}
