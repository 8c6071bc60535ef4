package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "IPO 데이터 수집",
	Long: `공모 일정과 거래 결과를 수집해서 DB에 저장합니다.

이 명령어는:
- 38.co.kr에서 공모 일정/조건 스크레이핑
- 상장일이 지난 레코드의 거래 결과를 KIS에서 수집

Example:
  go run ./cmd/ipocast collect
  go run ./cmd/ipocast collect --outcomes-only`,
	RunE: runCollect,
}

var outcomesOnly bool

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().BoolVar(&outcomesOnly, "outcomes-only", false, "거래 결과만 수집 (스크레이핑 생략)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ipocast Data Collection ===")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	if !outcomesOnly {
		n, err := a.collector.CollectListings(ctx)
		if err != nil {
			return fmt.Errorf("collect listings: %w", err)
		}
		fmt.Printf("✅ Listings collected: %d\n", n)
	}

	updated, err := a.collector.CollectOutcomes(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("collect outcomes: %w", err)
	}
	fmt.Printf("✅ Outcomes updated: %d\n", updated)

	return nil
}
