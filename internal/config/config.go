package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AdminPhone string `env:"ADMIN_PHONE"`
	HTTPPort   int    `env:"HTTP_PORT" envDefault:"8080"`

	// Storage
	ActivityLogPath string `env:"ACTIVITY_LOG_PATH" envDefault:"data/activity_log.csv"`
	OrderLogPath    string `env:"ORDER_LOG_PATH" envDefault:"data/orders.csv"`
	ExportDir       string `env:"EXPORT_DIR" envDefault:"exports"`

	// Catalog classification (which retailer ids are laptops vs repairs)
	LaptopRetailerIDs []string `env:"LAPTOP_RETAILER_IDS" envSeparator:","`
	RepairRetailerIDs []string `env:"REPAIR_RETAILER_IDS" envSeparator:","`

	// Reporting
	ReportCronSpec string `env:"REPORT_CRON_SPEC" envDefault:"0 21 * * *"`

	// Mail delivery
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SenderEmail    string `env:"SENDER_EMAIL"`
	SenderPassword string `env:"SENDER_PASSWORD"`
	RecipientEmail string `env:"RECIPIENT_EMAIL"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		logrus.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
