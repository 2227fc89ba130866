package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricewatch/internal/api"
	"pricewatch/internal/checker"
	"pricewatch/internal/config"
	"pricewatch/internal/extract"
	"pricewatch/internal/notify"
	"pricewatch/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.CronSecret == "" {
		log.Println("warning: CRON_SECRET is not set, the cron trigger will reject all invocations")
	}

	st, err := store.NewSQLite(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	extractor := extract.NewClient(cfg.ExtractorAPIURL, cfg.ExtractorAPIKey)

	emailService := notify.NewEmailService(
		cfg.SMTPHost, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPPort,
	)
	if !emailService.IsEnabled() {
		log.Println("email service disabled (SMTP credentials not configured)")
	}

	chk := checker.New(st, st, extractor, emailService)

	// Internal scheduler is optional; deployments driven by an external cron
	// trigger leave CHECK_INTERVAL unset.
	var scheduler *checker.Scheduler
	if cfg.CheckInterval > 0 {
		scheduler = checker.NewScheduler(chk, cfg.CheckInterval)
		scheduler.Start()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.SetupRoutes(r, st, chk, extractor, cfg.CronSecret)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server Shutdown: %v", err)
	}

	log.Println("graceful shutdown complete")
}
