// Package surrealdb implements the user store on SurrealDB. Each user is a
// single document embedding its portfolio and watchlist arrays.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/stockstash/internal/common"
)

// Connect opens a SurrealDB session and defines the schema the store relies on.
func Connect(ctx context.Context, cfg common.SurrealDBConfig, logger *common.Logger) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := DefineSchema(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB storage initialized")

	return db, nil
}

// DefineSchema creates the user table and the unique username index.
// The index is what guarantees identifier uniqueness under concurrent registration.
func DefineSchema(ctx context.Context, db *surrealdb.DB) error {
	stmts := []string{
		"DEFINE TABLE IF NOT EXISTS user SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS user_username ON TABLE user FIELDS username UNIQUE",
	}
	for _, sql := range stmts {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define schema (%s): %w", sql, err)
		}
	}
	return nil
}

// isUniqueViolation matches SurrealDB's index and record-id collision errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists")
}
