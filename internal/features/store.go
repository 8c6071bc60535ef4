package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// bundleVersion guards against loading state written by an incompatible
// feature derivation.
const bundleVersion = 1

// transformerBundle is the persisted fit state: category codes, scaler
// parameters and the ordered feature-name list, as one unit.
type transformerBundle struct {
	Version      int                       `json:"version"`
	FeatureNames []string                  `json:"feature_names"`
	Encoders     map[string]map[string]int `json:"encoders"`
	Means        []float64                 `json:"means"`
	Stds         []float64                 `json:"stds"`
}

// Save persists the fitted transformer state to path atomically
// (temp file + rename). Fails if the engineer is not fitted.
func (e *Engineer) Save(path string) error {
	if !e.fitted {
		return ErrNotFitted
	}

	bundle := transformerBundle{
		Version:      bundleVersion,
		FeatureNames: e.featureNames,
		Encoders:     e.encoder.Classes,
		Means:        e.scaler.Means,
		Stds:         e.scaler.Stds,
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transformer bundle: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transformer dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write transformer bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace transformer bundle: %w", err)
	}

	e.logger.WithField("path", path).Info("Saved transformer state")
	return nil
}

// Load restores fitted transformer state from path. A mismatched or
// partial bundle fails with ErrCorruptTransformerState; nothing is
// mutated on failure.
func (e *Engineer) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transformer bundle: %w", err)
	}

	var bundle transformerBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTransformerState, err)
	}

	if err := validateBundle(&bundle); err != nil {
		return err
	}

	e.featureNames = bundle.FeatureNames
	e.encoder = &CategoryEncoder{Classes: bundle.Encoders}
	e.scaler = &Scaler{Means: bundle.Means, Stds: bundle.Stds}
	e.fitted = true

	e.logger.WithFields(map[string]interface{}{
		"path":     path,
		"features": len(bundle.FeatureNames),
	}).Info("Loaded transformer state")
	return nil
}

// validateBundle checks the bundle is complete and internally consistent.
func validateBundle(b *transformerBundle) error {
	if b.Version != bundleVersion {
		return fmt.Errorf("%w: bundle version %d, want %d", ErrCorruptTransformerState, b.Version, bundleVersion)
	}
	if len(b.FeatureNames) == 0 {
		return fmt.Errorf("%w: empty feature name list", ErrCorruptTransformerState)
	}
	if len(b.Means) != len(b.FeatureNames) || len(b.Stds) != len(b.FeatureNames) {
		return fmt.Errorf("%w: scaler width %d/%d does not match %d features",
			ErrCorruptTransformerState, len(b.Means), len(b.Stds), len(b.FeatureNames))
	}
	for _, col := range []string{colListingMethod, colIndustry, colTheme} {
		if _, ok := b.Encoders[col]; !ok {
			return fmt.Errorf("%w: missing encoder for column %q", ErrCorruptTransformerState, col)
		}
	}
	return nil
}
