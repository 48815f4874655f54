package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers accepted in GOTSOPT_STORE.
const (
	DriverCSV        = "csv"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverBinance    = "binance"
)

// AppConfig is the process-level configuration of the gotsopt CLI.
type AppConfig struct {
	// StoreDriver is one of csv, postgres, clickhouse, binance.
	StoreDriver string
	StoreDSN    string // csv: directory; postgres/clickhouse: DSN
	// ResultsDSN, when set, persists each search summary to Postgres.
	ResultsDSN string

	MetricsAddr string
	LogLevel    string

	Binance BinanceConfig
}

type BinanceConfig struct {
	APIKey    string
	SecretKey string
}

// LoadEnv reads an optional dotenv file and maps GOTSOPT_* variables onto an
// AppConfig. A missing file is not an error; variables already set in the
// environment take precedence over the file.
func LoadEnv(path string) (*AppConfig, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", path, err)
		}
	}

	cfg := &AppConfig{
		StoreDriver: envOr("GOTSOPT_STORE", DriverCSV),
		StoreDSN:    envOr("GOTSOPT_STORE_DSN", "./data"),
		ResultsDSN:  os.Getenv("GOTSOPT_RESULTS_DSN"),
		MetricsAddr: os.Getenv("GOTSOPT_METRICS_ADDR"),
		LogLevel:    envOr("GOTSOPT_LOG_LEVEL", "info"),
		Binance: BinanceConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
	}
	switch strings.ToLower(cfg.StoreDriver) {
	case DriverCSV, DriverPostgres, DriverClickHouse, DriverBinance:
		cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	default:
		return nil, fmt.Errorf("unsupported GOTSOPT_STORE %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// EnvFloat returns the float value of key, or def when unset or malformed.
func EnvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

// EnvInt returns the int value of key, or def when unset or malformed.
func EnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
