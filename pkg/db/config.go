package db

import (
	"time"

	"github.com/smallbiznis/fintrack/internal/config"
)

// Backend names the storage engine behind a Gateway.
type Backend string

const (
	BackendEmbedded Backend = "embedded"
	BackendRemote   Backend = "remote"
)

type Config struct {
	Type            string
	Path            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Debug           bool
}

func NewConfig(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		Path:            cfg.DBPath,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
		Debug:           !cfg.IsProduction(),
	}
}

// Backend reports which implementation Open will select for this config.
func (c Config) Backend() Backend {
	switch c.Type {
	case "", "sqlite", "embedded":
		return BackendEmbedded
	default:
		return BackendRemote
	}
}
