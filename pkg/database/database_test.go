package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellcare/cellcare_backend/config"
)

func TestFromCentralConfig(t *testing.T) {
	cfg := FromCentralConfig(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "cellcare",
		Password: "secret",
		DBName:   "clinic",
		SSLMode:  "disable",
		Pool:     config.DatabasePoolConfig{MaxOpenConns: 10},
	})

	assert.Equal(t, "host=db port=5433 user=cellcare password=secret dbname=clinic sslmode=disable", cfg.DSN())
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, "5m0s", cfg.ConnMaxLifetime().String())
}

func TestMigrations_EmbeddedInOrder(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m, err := NewMigrator(db, Migrations)
	require.NoError(t, err)

	var versions []int64
	for _, src := range m.ListSources() {
		versions = append(versions, src.Version)
	}
	assert.Equal(t, []int64{1, 2}, versions)
}

func TestMigrations_FilesDeclareUpAndDown(t *testing.T) {
	files, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		body, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestMigrate_DatabaseErrorIsReturned(t *testing.T) {
	// No expectations: the first statement goose issues fails.
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	n, err := Migrate(context.Background(), db, Migrations)

	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "migrate")
}

func TestNewMigrator_RejectsEmptySource(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewMigrator(db, fstest.MapFS{})
	assert.Error(t, err)
}
