package database

import "github.com/querybot/querybot/internal/config"

// FromConfig returns the startup target and connection options.
func FromConfig(cfg config.DatabaseConfig) (Target, Options) {
	target := Target{
		Driver:   cfg.Driver,
		User:     cfg.User,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Name,
		TLSCA:    cfg.TLSCA,
		ReadOnly: cfg.ReadOnly,
	}
	opts := Options{
		Pool: PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		},
		QueryTimeout: cfg.QueryTimeout,
	}
	return target, opts
}
