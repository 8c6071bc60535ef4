package features

import "math"

// Scaler holds per-column standardization parameters, aligned with the
// ordered feature-name list. Fit once on the training corpus, then
// read-only.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes per-column mean and population standard deviation
// over the raw feature rows.
func FitScaler(rows [][]float64) *Scaler {
	if len(rows) == 0 {
		return &Scaler{}
	}

	width := len(rows[0])
	means := make([]float64, width)
	stds := make([]float64, width)

	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	n := float64(len(rows))
	for j := range means {
		means[j] /= n
	}

	for _, row := range rows {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
	}

	return &Scaler{Means: means, Stds: stds}
}

// Apply standardizes one row in place: (v - mean) / std.
// std가 0인 컬럼은 그대로 둔다 (0으로 나누기 방지).
func (s *Scaler) Apply(row []float64) {
	for j := range row {
		if j >= len(s.Means) {
			break
		}
		if s.Stds[j] == 0 {
			continue
		}
		row[j] = (row[j] - s.Means[j]) / s.Stds[j]
	}
}

// Width returns the number of columns the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.Means)
}
