// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/db"
)

// New returns a fresh database private to t. A single connection is kept
// open, so concurrent writers queue behind each other as they would behind
// a row lock.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString()[:8]),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	gdb, err := db.Init(cfg, nil, log)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
