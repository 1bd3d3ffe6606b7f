package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"spectrax-bot/internal/activity"
	"spectrax-bot/internal/config"
	"spectrax-bot/internal/notify"
	"spectrax-bot/internal/orders"
	"spectrax-bot/internal/report"
	"spectrax-bot/internal/scheduler"
	"spectrax-bot/internal/web"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Warnf(".env file not found: %v", err)
	}

	cfg := config.New()

	activityLog, err := activity.NewLogger(cfg.ActivityLogPath)
	if err != nil {
		logrus.Fatalf("failed to init activity log: %v", err)
	}
	orderLog, err := orders.NewLogger(cfg.OrderLogPath, cfg.ExportDir)
	if err != nil {
		logrus.Fatalf("failed to init order log: %v", err)
	}

	reports := report.NewGenerator(activityLog, orderLog)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword, cfg.RecipientEmail)

	sched := scheduler.New(cfg.ReportCronSpec)
	sched.SetReportFunction(func(ctx context.Context) error {
		daily := reports.Daily(time.Now())
		subject := fmt.Sprintf("SpectraX daily report %s", daily.Date)
		if err := mailer.SendReport(subject, daily.Text()); err != nil {
			return fmt.Errorf("deliver daily report: %w", err)
		}
		return nil
	})
	if err := sched.Start(); err != nil {
		logrus.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	server := web.NewServer(activityLog, orderLog, reports, cfg.AdminPhone,
		cfg.LaptopRetailerIDs, cfg.RepairRetailerIDs, cfg.ExportDir, cfg.HTTPPort)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("web server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logrus.Info("shutting down")
	if err := server.Stop(); err != nil {
		logrus.Errorf("web server shutdown: %v", err)
	}
}
