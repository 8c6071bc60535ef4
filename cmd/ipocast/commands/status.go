package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/ipocast/internal/contracts"
	"github.com/wonny/ipocast/pkg/config"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "파이프라인 산출물 상태 조회",
	Long: `디스크에 남아 있는 산출물(모델, 아티팩트)의 상태를 출력합니다.
DB 연결 없이 동작합니다.

Example:
  go run ./cmd/ipocast status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("=== ipocast Status ===")

	// Model artifacts
	metricsPath := filepath.Join(cfg.Paths.ModelsDir, "metrics.json")
	if info, err := os.Stat(metricsPath); err == nil {
		fmt.Printf("\nModels:       %s (trained %s)\n",
			cfg.Paths.ModelsDir, info.ModTime().Format("2006-01-02 15:04"))
	} else {
		fmt.Printf("\nModels:       not trained yet (%s)\n", cfg.Paths.ModelsDir)
	}

	// Prediction artifact
	data, err := os.ReadFile(cfg.Paths.OutputFile)
	if err != nil {
		fmt.Printf("Artifact:     not generated yet (%s)\n", cfg.Paths.OutputFile)
		return nil
	}

	var artifact contracts.PredictionArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return fmt.Errorf("artifact is corrupt: %w", err)
	}

	md := artifact.Metadata
	fmt.Printf("Artifact:     %s\n", cfg.Paths.OutputFile)
	fmt.Printf("  generated:  %s\n", md.GeneratedAt)
	fmt.Printf("  model:      %s (%s)\n", md.ModelType, md.ModelVersion)
	fmt.Printf("  listings:   %d (%s ~ %s)\n", md.TotalIPOs, md.DateRange.Start, md.DateRange.End)
	fmt.Printf("  features:   %d\n", len(md.FeaturesUsed))

	return nil
}
