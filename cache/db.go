// Package cache implements the local persistence layer for synced entities,
// backed by GORM over SQLite (pure Go driver). It owns the session store and
// the transactional apply rules for server responses: every read-modify-write
// runs inside a single transaction, so no caller can observe a half-written
// state.
package cache

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tidewatch/tidesync/domain"
)

// Open opens (or creates) the cache database and applies PRAGMAs.
func Open(path string) (*gorm.DB, error) {
	// Fail early if the parent directory does not exist (instead of a cryptic
	// sqlite "out of memory (14)" on some platforms).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool. SQLite serializes writers anyway; a single open connection keeps
	// transactions strictly ordered without busy retries.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	return db, nil
}

// Migrate creates or updates the schema for every cached entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.EmailAddress{},
		&domain.Profile{},
		&domain.Session{},
		&domain.Note{},
		&domain.Hashtag{},
		&domain.SharedUserID{},
	)
}

// Clear deletes every row from every entity table in one transaction. Used
// by sign-out, which drops local state immediately regardless of the
// server's answer.
func Clear(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&domain.Session{},
			&domain.Hashtag{},
			&domain.Note{},
			&domain.SharedUserID{},
			&domain.EmailAddress{},
			&domain.Profile{},
			&domain.User{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
