package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Tables  TablesConfig
	Sweep   SweepConfig
	Stream  StreamConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type TablesConfig struct {
	Orders      string
	Control     string
	MenuItems   string
	Restaurants string
	Customers   string
}

type SweepConfig struct {
	QueueURL   string
	GraceDelay time.Duration
}

type StreamConfig struct {
	ARN          string
	PollInterval time.Duration
}

type MetricsConfig struct {
	Namespace string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("ORDERS_TABLE", "orders")
	viper.SetDefault("CONTROL_TABLE", "control")
	viper.SetDefault("MENU_ITEMS_TABLE", "menu_items")
	viper.SetDefault("RESTAURANTS_TABLE", "restaurants")
	viper.SetDefault("CUSTOMERS_TABLE", "customers")
	viper.SetDefault("SWEEP_QUEUE_URL", "")
	viper.SetDefault("SWEEP_GRACE_DELAY", "2s")
	viper.SetDefault("ORDERS_STREAM_ARN", "")
	viper.SetDefault("STREAM_POLL_INTERVAL", "3s")
	viper.SetDefault("METRICS_NAMESPACE", "PatrastE/Backoffice")
	viper.SetDefault("LOG_LEVEL", "info")

	graceDelay, err := time.ParseDuration(viper.GetString("SWEEP_GRACE_DELAY"))
	if err != nil {
		return nil, err
	}
	pollInterval, err := time.ParseDuration(viper.GetString("STREAM_POLL_INTERVAL"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("SERVER_PORT"),
		},
		Tables: TablesConfig{
			Orders:      viper.GetString("ORDERS_TABLE"),
			Control:     viper.GetString("CONTROL_TABLE"),
			MenuItems:   viper.GetString("MENU_ITEMS_TABLE"),
			Restaurants: viper.GetString("RESTAURANTS_TABLE"),
			Customers:   viper.GetString("CUSTOMERS_TABLE"),
		},
		Sweep: SweepConfig{
			QueueURL:   viper.GetString("SWEEP_QUEUE_URL"),
			GraceDelay: graceDelay,
		},
		Stream: StreamConfig{
			ARN:          viper.GetString("ORDERS_STREAM_ARN"),
			PollInterval: pollInterval,
		},
		Metrics: MetricsConfig{
			Namespace: viper.GetString("METRICS_NAMESPACE"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}
