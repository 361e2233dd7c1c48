package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/stockstash/internal/common"
	tcommon "github.com/bobmcallan/stockstash/tests/common"
)

// testDB connects to the shared SurrealDB container and selects a database
// unique to the test, with the schema defined.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(sc.Address())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": "root",
		"pass": "root",
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	// SurrealDB rejects "/" in database names.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if err := db.Use(ctx, "stockstash_test", dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}
	if err := DefineSchema(ctx, db); err != nil {
		t.Fatalf("define schema: %v", err)
	}

	return db
}

func testStore(t *testing.T) *UserStore {
	t.Helper()
	s := NewUserStore(testDB(t), common.NewSilentLogger())
	t.Cleanup(func() { s.Close() })
	return s
}
