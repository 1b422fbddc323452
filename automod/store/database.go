package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Opens a database from a URL: "sqlite://<path>", "postgres://..." (or "postgresql://"), or the "sqlite=" / "postgres=" DSN forms.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	var sqlitePath string
	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		sqlitePath = dburl[len("sqlite://"):]
		isSqlite = true
	case strings.HasPrefix(dburl, "sqlite="):
		sqlitePath = dburl[len("sqlite="):]
		isSqlite = true
	case strings.HasPrefix(dburl, "postgresql://"), strings.HasPrefix(dburl, "postgres://"):
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	case strings.HasPrefix(dburl, "postgres="):
		dial = postgres.Open(dburl[len("postgres="):])
	default:
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme: %q", schemeOf(dburl))
	}
	if isSqlite {
		// ensure the directory exists when the db file is being initialized
		if sqlitePath != ":memory:" && !strings.Contains(sqlitePath, ":?") {
			if err := os.MkdirAll(filepath.Dir(sqlitePath), os.ModePerm); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		dial = sqlite.Open(sqlitePath)
		openConns = 1
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(max(openConns, 1))
	if openConns > 0 {
		sqldb.SetMaxOpenConns(openConns)
	}
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=normal;"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, err
			}
		}
	}
	return db, nil
}

// avoid echoing credentials back in errors
func schemeOf(dburl string) string {
	scheme, _, ok := strings.Cut(dburl, ":")
	if !ok {
		return ""
	}
	return scheme
}
