package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func expectLabelRow(mock sqlmock.Sqlmock, rows int) {
	result := sqlmock.NewRows([]string{"id", "version", "branch", "entries", "saved_at"})
	for i := 0; i < rows; i++ {
		result.AddRow(i+1, "5.10", "live", 0, time.Now())
	}
	mock.ExpectQuery("SELECT \\* FROM `registry_labels` WHERE").
		WithArgs("5.10", "live").
		WillReturnRows(result)
}

func setupSQLite(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	require.NoError(t, db.AutoMigrate(&Entry{}, &LabelRow{}))
	return db
}

func TestDBStore_Read(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "version", "branch", "path", "extension", "size"}).
		AddRow(1, "5.10", "live", "a/b", "uasset", 100).
		AddRow(2, "5.10", "live", "c/d", "locres", 7)
	expectLabelRow(mock, 1)
	mock.ExpectQuery("SELECT \\* FROM `registry_entries` WHERE").
		WithArgs("5.10", "live").
		WillReturnRows(rows)

	entries, err := NewDBStore(db).Read(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, map[string]AssetRecord{
		"a/b": {Extension: "uasset", Size: 100},
		"c/d": {Extension: "locres", Size: 7},
	}, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_ReadUnknownLabelIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	expectLabelRow(mock, 0)

	_, err := NewDBStore(db).Read(context.Background(), current)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_ReadSavedEmptyLabel(t *testing.T) {
	db, mock := setupMockDB(t)

	expectLabelRow(mock, 1)
	mock.ExpectQuery("SELECT \\* FROM `registry_entries` WHERE").
		WithArgs("5.10", "live").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "branch", "path", "extension", "size"}))

	entries, err := NewDBStore(db).Read(context.Background(), current)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_ReadError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT \\* FROM `registry_labels` WHERE").
		WillReturnError(errors.New("connection reset"))

	_, err := NewDBStore(db).Read(context.Background(), current)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDBStore_WriteReplacesLabel(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `registry_entries` WHERE").
		WithArgs("5.10", "live").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM `registry_labels` WHERE").
		WithArgs("5.10", "live").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `registry_labels`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `registry_entries`").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	err := NewDBStore(db).Write(context.Background(), current, map[string]AssetRecord{
		"a/b": {Extension: "uasset", Size: 100},
		"c/d": {Extension: "locres", Size: 7},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_WriteRollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `registry_entries` WHERE").
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := NewDBStore(db).Write(context.Background(), current, map[string]AssetRecord{
		"a/b": {Extension: "uasset", Size: 100},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBStore_EmptySaveIsNotReseeded(t *testing.T) {
	db := setupSQLite(t)
	store := NewDBStore(db)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, previous, map[string]AssetRecord{
		"old/x": {Extension: "uasset", Size: 9},
	}))

	r := New(current, store, WithFallback(previous))
	require.NoError(t, r.Load(ctx))
	assert.Equal(t, 1, r.Len())

	r.Remove("old/x")
	require.NoError(t, r.Save(ctx))

	reloaded := New(current, store, WithFallback(previous))
	require.NoError(t, reloaded.Load(ctx))
	assert.Zero(t, reloaded.Len())

	entries, err := store.Read(ctx, current)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Read(ctx, Label{Version: "4.00"})
	assert.ErrorIs(t, err, ErrNotFound)
}
