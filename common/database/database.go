package database

import (
	"database/sql"
	"fmt"

	"yourmove/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// sqlitePragmas SQLite 连接初始化语句
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
}

// Open 按 cfg.Driver 打开数据库连接并 Ping。
// postgres 使用连接池配置；sqlite 为单写者，固定一个连接。
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	var dsn string
	switch cfg.Driver {
	case "postgres":
		dsn = cfg.GetDSN()
	case "sqlite":
		dsn = cfg.SQLitePath
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
		for _, p := range sqlitePragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", p, err)
			}
		}
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
