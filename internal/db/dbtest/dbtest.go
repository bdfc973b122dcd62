// Package dbtest opens throwaway in-memory databases for store tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/yieldgap-ma/yg-backend/internal/db"
	"gorm.io/gorm"
)

// Open returns a private in-memory sqlite database that is closed when t ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	d, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return d
}
