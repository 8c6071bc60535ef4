package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ipocast",
	Short: "ipocast - 공모주 상장일 가격 예측 파이프라인",
	Long: `ipocast Unified CLI

공모주(IPO) 상장일 가격 예측 배치 파이프라인.
수집 → 피처 변환 → 예측 → 정적 아티팩트 생성.

Usage:
  go run ./cmd/ipocast [command]

Examples:
  go run ./cmd/ipocast collect
  go run ./cmd/ipocast train
  go run ./cmd/ipocast generate
  go run ./cmd/ipocast serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
