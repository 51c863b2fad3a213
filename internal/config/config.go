package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	SettlementGroupID string   `env:"SETTLEMENT_GROUP_ID" envDefault:"settlement-consumer-group"`

	// Per-operation caps and the platform settlement fee, in currency units.
	DepositLimit    float64 `env:"DEPOSIT_LIMIT" envDefault:"10000"`
	WithdrawalLimit float64 `env:"WITHDRAWAL_LIMIT" envDefault:"5000"`
	SettlementFee   float64 `env:"SETTLEMENT_FEE" envDefault:"2.00"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
