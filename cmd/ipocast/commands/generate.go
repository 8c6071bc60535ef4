package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "예측 아티팩트 생성",
	Long: `수집 → 변환 → 예측 → 아티팩트 기록의 전체 파이프라인을 한 번 실행합니다.

학습된 모델과 변환기 번들이 디스크에 있어야 합니다 (train 먼저 실행).
기존 아티팩트는 새 아티팩트가 완성된 뒤에만 원자적으로 교체됩니다.

Example:
  go run ./cmd/ipocast generate`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ipocast Prediction Generation ===")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.runner.Generate(cmd.Context()); err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	fmt.Printf("\n✅ Artifact written to %s\n", a.cfg.Paths.OutputFile)
	return nil
}
