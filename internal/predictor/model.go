package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/smukkama/caribe-weather/internal/database"
)

const (
	// MinSamples is the smallest data set Train accepts.
	MinSamples  = 10
	BatchSize   = 5
	trainShare  = 0.8
	maxExamples = 5
)

// Features are the model inputs in column order.
var Features = []string{"humidity", "pressure", "wind_speed", "cloud_cover"}

var (
	ErrNotEnoughData = errors.New("not enough data to train")
	ErrNotFitted     = errors.New("model is not fitted")
	ErrModelNotFound = errors.New("model file not found")
)

// Model predicts temperature from humidity, pressure, wind speed and cloud cover.
type Model struct {
	Features  []string   `json:"features"`
	Scaler    *Scaler    `json:"scaler"`
	Regressor *Regressor `json:"regressor"`
	Fitted    bool       `json:"fitted"`
	TrainedAt time.Time  `json:"trained_at"`
}

// NewModel creates an unfitted model.
func NewModel() *Model {
	return &Model{
		Features:  Features,
		Scaler:    NewScaler(len(Features)),
		Regressor: NewRegressor(len(Features)),
	}
}

// TrainIncremental updates the model with one mini-batch. The first batch
// runs a full fit; later batches run a single epoch.
func (m *Model) TrainIncremental(x [][]float64, y []float64) {
	m.Scaler.PartialFit(x)
	scaled := m.Scaler.Transform(x)
	if !m.Fitted {
		m.Regressor.Fit(scaled, y)
		m.Fitted = true
		return
	}
	m.Regressor.PartialFit(scaled, y)
}

// Predict returns the predicted temperature for one observation.
func (m *Model) Predict(humidity, pressure, windSpeed, cloudCover float64) (float64, error) {
	if !m.Fitted {
		return 0, ErrNotFitted
	}
	row := m.Scaler.Transform([][]float64{{humidity, pressure, windSpeed, cloudCover}})[0]
	return m.Regressor.Predict(row), nil
}

// Example is one held-out observation with its prediction.
type Example struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
	Error     float64 `json:"error"`
}

// Evaluation describes a training run.
type Evaluation struct {
	Samples   int       `json:"samples"`
	TrainSize int       `json:"train_size"`
	TestSize  int       `json:"test_size"`
	Batches   int       `json:"batches"`
	MAE       float64   `json:"mae"`
	R2        float64   `json:"r2"`
	Examples  []Example `json:"examples"`
}

// Train fits a new model on chronologically ordered samples, holding out
// the last fifth for evaluation.
func Train(samples []database.TrainingSample) (*Model, *Evaluation, error) {
	if len(samples) < MinSamples {
		return nil, nil, fmt.Errorf("%w: %d samples, need %d", ErrNotEnoughData, len(samples), MinSamples)
	}

	x, y := matrix(samples)
	split := int(float64(len(x)) * trainShare)

	m := NewModel()
	eval := &Evaluation{Samples: len(samples), TrainSize: split, TestSize: len(x) - split}

	for i := 0; i < split; i += BatchSize {
		end := min(i+BatchSize, split)
		m.TrainIncremental(x[i:end], y[i:end])
		eval.Batches++
	}
	m.TrainedAt = time.Now().UTC()

	if eval.TestSize > 0 {
		evaluate(m, x[split:], y[split:], eval)
	}
	return m, eval, nil
}

func evaluate(m *Model, x [][]float64, y []float64, eval *Evaluation) {
	predicted := make([]float64, len(x))
	for i, row := range m.Scaler.Transform(x) {
		predicted[i] = m.Regressor.Predict(row)
	}

	var absErr float64
	for i := range y {
		absErr += math.Abs(y[i] - predicted[i])
	}
	eval.MAE = absErr / float64(len(y))
	eval.R2 = stat.RSquaredFrom(predicted, y, nil)

	for i := range min(maxExamples, len(y)) {
		eval.Examples = append(eval.Examples, Example{
			Actual:    y[i],
			Predicted: predicted[i],
			Error:     math.Abs(y[i] - predicted[i]),
		})
	}
}

func matrix(samples []database.TrainingSample) ([][]float64, []float64) {
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = []float64{s.Humidity, s.Pressure, s.WindSpeed, s.CloudCover}
		y[i] = s.Temperature
	}
	return x, y
}

// Save writes the model as JSON, replacing path atomically.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// Load reads a model saved by Save. A missing file yields ErrModelNotFound.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if m.Scaler == nil || m.Regressor == nil ||
		len(m.Scaler.Mean) != len(Features) || len(m.Regressor.Weights) != len(Features) {
		return nil, fmt.Errorf("failed to decode model: unexpected feature count")
	}
	return &m, nil
}
