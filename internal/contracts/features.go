package contracts

// FeatureMatrix is the scaled numeric encoding of a record batch.
// Names의 순서는 학습과 추론 사이에서 절대 바뀌면 안 된다.
type FeatureMatrix struct {
	Names []string    `json:"names"`
	Rows  [][]float64 `json:"rows"`
}

// NumRows returns the number of encoded records.
func (m *FeatureMatrix) NumRows() int {
	return len(m.Rows)
}

// NumFeatures returns the fixed feature width.
func (m *FeatureMatrix) NumFeatures() int {
	return len(m.Names)
}

// TargetMatrix maps target name to the raw observed values, row-aligned
// with the feature matrix returned by the same fit call.
type TargetMatrix map[string][]float64
