package db

import (
	"gorm.io/gorm"
)

// Open selects the backend once from cfg. Callers never branch on it afterwards.
func Open(cfg Config, gormCfg *gorm.Config) (Gateway, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	if cfg.Backend() == BackendEmbedded {
		return openEmbedded(cfg, gormCfg)
	}
	return openRemote(cfg, gormCfg)
}

// GormDB returns the gorm handle behind g, or nil for foreign implementations.
func GormDB(g Gateway) *gorm.DB {
	if h, ok := g.(interface{ DB() *gorm.DB }); ok {
		return h.DB()
	}
	return nil
}
