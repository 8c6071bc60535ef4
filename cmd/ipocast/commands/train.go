package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/ipocast/internal/contracts"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "모델 학습 (retrain)",
	Long: `거래 결과가 관측된 전체 레코드로 변환기와 모델을 다시 학습합니다.

이 명령어는:
- 누락된 거래 결과를 KIS에서 수집
- 피처 변환기 적합 후 번들 저장
- 타깃별 랜덤 포레스트 학습 후 모델 저장
- 평가 지표 출력

Example:
  go run ./cmd/ipocast train`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ipocast Model Training ===")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.runner.Retrain(cmd.Context()); err != nil {
		return fmt.Errorf("retrain failed: %w", err)
	}

	report := a.ensemble.Report()
	if report == nil {
		return fmt.Errorf("training produced no evaluation report")
	}

	fmt.Printf("\n✅ Training complete (train=%d, test=%d)\n\n", report.TrainRows, report.TestRows)
	for _, target := range contracts.TargetNames() {
		tr, ok := report.Targets[target]
		if !ok {
			continue
		}
		fmt.Printf("  %-12s  test MAE=%.0f  RMSE=%.0f  R2=%.3f  MAPE=%.2f%%\n",
			target, tr.Test.MAE, tr.Test.RMSE, tr.Test.R2, tr.Test.MAPE)
	}

	fmt.Printf("\nModels:       %s\n", a.cfg.Paths.ModelsDir)
	fmt.Printf("Transformers: %s\n", a.cfg.Paths.TransformersDir)
	return nil
}
