package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wonny/ipocast/internal/contracts"
)

// modelFileName returns the artifact file for one target.
func modelFileName(target string) string {
	return fmt.Sprintf("model_%s.json", target)
}

// Save persists the three fitted forests as independent named artifacts
// under dir, plus the last evaluation report when available. Each file is
// written atomically.
func (e *Ensemble) Save(dir string) error {
	if !e.Fitted() {
		return ErrNotTrained
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	for _, name := range contracts.TargetNames() {
		path := filepath.Join(dir, modelFileName(name))
		if err := writeJSONAtomic(path, e.forests[name]); err != nil {
			return fmt.Errorf("save model %s: %w", name, err)
		}
		e.logger.WithFields(map[string]interface{}{
			"target": name,
			"path":   path,
		}).Info("Saved model artifact")
	}

	if e.report != nil {
		if err := writeJSONAtomic(filepath.Join(dir, "metrics.json"), e.report); err != nil {
			return fmt.Errorf("save metrics: %w", err)
		}
	}

	return nil
}

// Load restores the three target models from dir. A missing or unreadable
// artifact fails with ErrIncompleteModelSet; the ensemble is left
// untouched on failure.
func (e *Ensemble) Load(dir string) error {
	forests := make(map[string]*Forest, 3)

	for _, name := range contracts.TargetNames() {
		path := filepath.Join(dir, modelFileName(name))
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: missing artifact for %s", ErrIncompleteModelSet, name)
			}
			return fmt.Errorf("read model %s: %w", name, err)
		}

		var forest Forest
		if err := json.Unmarshal(data, &forest); err != nil {
			return fmt.Errorf("%w: artifact for %s is unreadable: %v", ErrIncompleteModelSet, name, err)
		}
		if len(forest.Trees) == 0 {
			return fmt.Errorf("%w: artifact for %s has no trees", ErrIncompleteModelSet, name)
		}
		forests[name] = &forest
	}

	e.forests = forests
	e.report = nil

	e.logger.WithField("dir", dir).Info("Loaded model set")
	return nil
}

// writeJSONAtomic marshals v and replaces path via temp file + rename.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
