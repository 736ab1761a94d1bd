package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB returns a migrated, named shared in-memory database. The name
// comes from t.Name() so parallel tests never share state; cache=shared lets
// the writer and reader pools see the same data.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL does not apply to in-memory databases, so journal_mode is omitted.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	ctx := context.Background()
	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		t.Fatalf("open test db writer: %v", err)
	}
	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
