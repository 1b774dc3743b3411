package predictor

import "math"

// Regressor is a linear model trained by stochastic gradient descent on the
// squared loss with an L2 penalty and an inverse-scaling learning rate.
type Regressor struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`

	// T counts the samples seen so far and drives the learning rate.
	T float64 `json:"t"`

	Alpha  float64 `json:"alpha"`
	Eta0   float64 `json:"eta0"`
	PowerT float64 `json:"power_t"`

	MaxIter      int     `json:"max_iter"`
	Tol          float64 `json:"tol"`
	IterNoChange int     `json:"n_iter_no_change"`
}

// NewRegressor creates an untrained regressor for n features.
func NewRegressor(n int) *Regressor {
	return &Regressor{
		Weights:      make([]float64, n),
		T:            1,
		Alpha:        1e-4,
		Eta0:         0.01,
		PowerT:       0.25,
		MaxIter:      1000,
		Tol:          1e-3,
		IterNoChange: 5,
	}
}

// Fit trains from the current weights until the epoch loss stops improving
// by Tol for IterNoChange epochs, or MaxIter epochs. It returns the epochs run.
func (r *Regressor) Fit(x [][]float64, y []float64) int {
	best := math.Inf(1)
	noChange := 0

	for epoch := 1; epoch <= r.MaxIter; epoch++ {
		loss := r.epoch(x, y)
		if loss > best-r.Tol {
			noChange++
		} else {
			noChange = 0
		}
		best = math.Min(best, loss)
		if noChange >= r.IterNoChange {
			return epoch
		}
	}
	return r.MaxIter
}

// PartialFit runs a single epoch over the batch.
func (r *Regressor) PartialFit(x [][]float64, y []float64) {
	r.epoch(x, y)
}

// Predict evaluates the linear model on an already scaled row.
func (r *Regressor) Predict(x []float64) float64 {
	p := r.Intercept
	for j, v := range x {
		p += r.Weights[j] * v
	}
	return p
}

// epoch returns the mean squared loss observed during the pass.
func (r *Regressor) epoch(x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	var total float64
	for i, row := range x {
		eta := r.Eta0 / math.Pow(r.T, r.PowerT)
		residual := r.Predict(row) - y[i]
		total += 0.5 * residual * residual

		decay := math.Max(0, 1-eta*r.Alpha)
		for j, v := range row {
			r.Weights[j] = r.Weights[j]*decay - eta*residual*v
		}
		r.Intercept -= eta * residual
		r.T++
	}
	return total / float64(len(x))
}
