package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/orange-taco/ainsight-backend/internal/common"
	tcommon "github.com/orange-taco/ainsight-backend/tests/common"
	surreal "github.com/surrealdb/surrealdb.go"
)

// testDB starts the shared SurrealDB container and returns a connected *surreal.DB
// using a unique database name per test to ensure isolation. The pipeline
// schema (tables and indexes) is applied so unique-key behavior matches
// production.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()
	return testDBConn(t, testDBName(t))
}

// testDBName builds a database name unique to this test run.
// Sanitizes t.Name() because subtests produce names like "Test/subtest"
// and SurrealDB rejects "/" in database names.
func testDBName(t *testing.T) string {
	t.Helper()
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
}

// testDBConn opens a fresh connection to a named test database. Concurrency
// tests join several connections to the same database to simulate separate
// worker processes.
func testDBConn(t *testing.T, dbName string) *surreal.DB {
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

	if err := db.Use(ctx, "ainsight_test", dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	for _, stmt := range schema {
		if _, err := surreal.Query[any](ctx, db, stmt, nil); err != nil {
			t.Fatalf("define schema: %v", err)
		}
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return db
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
