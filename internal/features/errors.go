package features

import "errors"

var (
	// ErrNotFitted is returned when Transform is called before the
	// encoder/scaler have been fitted or loaded.
	ErrNotFitted = errors.New("feature engineer is not fitted")

	// ErrCorruptTransformerState is returned when a persisted transformer
	// bundle fails its integrity check on load.
	ErrCorruptTransformerState = errors.New("corrupt transformer state")

	// ErrNoTrainingRecords is returned when FitTransform receives no
	// records, or none carry all three trade outcomes.
	ErrNoTrainingRecords = errors.New("no training-eligible records")
)
