package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/ipocast/internal/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 + 스케줄러 시작",
	Long: `예측 아티팩트를 서빙하는 API 서버를 시작합니다.
스케줄러가 활성화되어 있으면 배치 작업도 함께 스케줄합니다.

Endpoints:
  GET  /health                  - Health check
  GET  /api/predictions         - 예측 아티팩트 조회
  GET  /api/metrics             - 모델 평가 지표 조회
  GET  /api/pipeline/status     - 파이프라인 상태 조회
  POST /api/pipeline/generate   - generate 실행 트리거
  POST /api/pipeline/retrain    - retrain 실행 트리거
  GET  /ws/runs                 - 파이프라인 진행 상황 구독

Example:
  go run ./cmd/ipocast serve
  go run ./cmd/ipocast serve --port 8091`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본값: PORT env)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ipocast API Server ===")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	log := a.logger

	// 웹소켓 허브를 파이프라인 이벤트 싱크로 연결
	hub := api.NewHub(log)
	defer hub.Close()
	a.runner.WithSink(hub)

	handler := api.NewHandler(a.runner, a.cfg.Paths, log)
	router := api.NewRouter(handler, hub, log)
	server := api.New(a.cfg, log, router)

	// Scheduler
	if a.cfg.Scheduler.Enabled {
		sched, err := buildScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
