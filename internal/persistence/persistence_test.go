// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"context"
	"errors"
	"os"
	"path"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGormPSQLPersistence(t *testing.T) (Persistence, sqlmock.Sqlmock) {
	db, mdb, _ := sqlmock.New()

	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	return &provider{
		p:    &postgresProvider{},
		gdb:  gdb,
		db:   db,
		conf: &iouconf.SQLDBConfig{},
	}, mdb
}

func sqliteConf(dsn string) *iouconf.DBConfig {
	return &iouconf.DBConfig{
		Type: TypeSQLite,
		SQLite: iouconf.SQLiteConfig{
			SQLDBConfig: iouconf.SQLDBConfig{
				DSN:         dsn,
				AutoMigrate: confutil.P(false),
			},
		},
	}
}

func TestNewPersistenceBadType(t *testing.T) {
	_, err := NewPersistence(context.Background(), &iouconf.DBConfig{Type: "wrong"})
	assert.Regexp(t, "IO010200", err)
}

func TestNewPersistenceMissingDSN(t *testing.T) {
	_, err := NewPersistence(context.Background(), &iouconf.DBConfig{Type: TypePostgres})
	assert.Regexp(t, "IO010201", err)
}

func TestGormInitFail(t *testing.T) {
	// SQLite fails when pointed at a directory
	_, err := NewPersistence(context.Background(), sqliteConf("file://"+t.TempDir()))
	assert.Regexp(t, "IO010202", err)
}

func TestGormEmbeddedMigrations(t *testing.T) {
	conf := sqliteConf(":memory:")
	conf.SQLite.AutoMigrate = confutil.P(true)
	p, err := NewPersistence(context.Background(), conf)
	require.NoError(t, err)
	defer p.Close()

	for _, table := range []string{"contracts", "ious", "transactions"} {
		assert.True(t, p.DB().Migrator().HasTable(table), table)
	}
}

func TestGormMigrationsFromDir(t *testing.T) {
	conf := sqliteConf(":memory:")
	conf.SQLite.AutoMigrate = confutil.P(true)
	conf.SQLite.MigrationsDir = "../../db/migrations/sqlite"
	p, err := NewPersistence(context.Background(), conf)
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.DB().Migrator().HasTable("ious"))
}

func TestEmbeddedMigrationsByType(t *testing.T) {
	for _, dbName := range []string{"sqlite", "postgres"} {
		src, err := embeddedMigrations(dbName)
		require.NoError(t, err)
		first, err := src.First()
		require.NoError(t, err)
		assert.Equal(t, uint(1), first)
		require.NoError(t, src.Close())
	}
	_, err := embeddedMigrations("oracle")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:iou?mode=memory&cache=shared", sqliteDSN("file:iou?mode=memory&cache=shared"))
	assert.Equal(t, "iou.db?_busy_timeout=100", sqliteDSN("iou.db?_busy_timeout=100"))
	assert.Equal(t, "iou.db?_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("iou.db"))
}

func TestSQLiteFileUsesWAL(t *testing.T) {
	conf := sqliteConf(path.Join(t.TempDir(), "iou.db"))
	conf.SQLite.AutoMigrate = confutil.P(true)
	p, err := NewPersistence(context.Background(), conf)
	require.NoError(t, err)
	defer p.Close()

	var mode string
	require.NoError(t, p.DB().Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}

func TestSQLiteFileReadDuringWrite(t *testing.T) {
	conf := sqliteConf(path.Join(t.TempDir(), "iou.db"))
	conf.SQLite.MaxOpenConns = confutil.P(2)
	p, err := NewPersistence(context.Background(), conf)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.DB().Exec("CREATE TABLE scratch (v INTEGER)").Error)

	tx := p.DB().Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, tx.Exec("INSERT INTO scratch (v) VALUES (1)").Error)

	var count int64
	require.NoError(t, p.DB().Raw("SELECT COUNT(*) FROM scratch").Scan(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, tx.Commit().Error)
	require.NoError(t, p.DB().Raw("SELECT COUNT(*) FROM scratch").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormMigrationFail(t *testing.T) {
	tempFile := path.Join(t.TempDir(), "wrong")
	require.NoError(t, os.WriteFile(tempFile, []byte{}, 0664))
	conf := sqliteConf(":memory:")
	conf.SQLite.AutoMigrate = confutil.P(true)
	conf.SQLite.MigrationsDir = tempFile
	conf.SQLite.DebugQueries = true
	_, err := NewPersistence(context.Background(), conf)
	assert.Regexp(t, "IO010203", err)
}

func TestGormInitTemplatedDSN(t *testing.T) {
	var1File := path.Join(t.TempDir(), "varfile1")
	require.NoError(t, os.WriteFile(var1File, []byte("memory\n"), 0644))
	conf := sqliteConf(":{{.Var1}}:")
	conf.SQLite.DSNParams = map[string]iouconf.DSNParamLocation{
		"Var1": {File: var1File},
	}
	p, err := NewPersistence(context.Background(), conf)
	require.NoError(t, err)
	p.Close()
}

func TestGormInitTemplatedDSNMissing(t *testing.T) {
	var1File := path.Join(t.TempDir(), "varfile1")
	require.NoError(t, os.WriteFile(var1File, []byte("unused"), 0644))
	conf := sqliteConf(":{{.NotDefined}}:")
	conf.SQLite.DSNParams = map[string]iouconf.DSNParamLocation{
		"Var1": {File: var1File},
	}
	_, err := NewPersistence(context.Background(), conf)
	assert.Regexp(t, "IO010207", err)
}

func TestDSNTemplateFileLoadFail(t *testing.T) {
	_, err := templatedDSN(context.Background(), &iouconf.SQLDBConfig{
		DSN: "mydbconn?var1={{.Var1}}",
		DSNParams: map[string]iouconf.DSNParamLocation{
			"Var1": {File: path.Join(t.TempDir(), "missing")},
		},
	})
	assert.Regexp(t, "IO010206", err)
}

func TestDSNTemplateBadTemplate(t *testing.T) {
	_, err := templatedDSN(context.Background(), &iouconf.SQLDBConfig{
		DSN: "mydbconn?var1={{",
		DSNParams: map[string]iouconf.DSNParamLocation{
			"Var1": {File: "unused"},
		},
	})
	assert.Regexp(t, "IO010205", err)
}

func TestUnitTestPersistenceMigrates(t *testing.T) {
	p, done, err := NewUnitTestPersistence(context.Background())
	require.NoError(t, err)
	defer done()

	for _, table := range []string{"contracts", "ious", "owner_tokens", "creator_tokens", "accounts", "transactions"} {
		assert.True(t, p.DB().Migrator().HasTable(table), table)
	}
	require.NoError(t, p.TakeNamedLock(context.Background(), p.NOTX(), "any"))
}

func TestTransactionHooks(t *testing.T) {
	p, done, err := NewUnitTestPersistence(context.Background())
	require.NoError(t, err)
	defer done()

	var calls []string
	err = p.Transaction(context.Background(), func(ctx context.Context, dbTX DBTX) error {
		assert.True(t, dbTX.FullTransaction())
		dbTX.AddPreCommit(func(ctx context.Context, dbTX DBTX) error {
			calls = append(calls, "precommit")
			return nil
		})
		dbTX.AddPostCommit(func(ctx context.Context) {
			calls = append(calls, "postcommit")
		})
		dbTX.AddFinalizer(func(ctx context.Context, err error) {
			assert.NoError(t, err)
			calls = append(calls, "finalizer")
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"precommit", "finalizer", "postcommit"}, calls)
}

func TestTransactionPreCommitRollback(t *testing.T) {
	p, done, err := NewUnitTestPersistence(context.Background())
	require.NoError(t, err)
	defer done()

	postCommitCalled := false
	var finalErr error
	err = p.Transaction(context.Background(), func(ctx context.Context, dbTX DBTX) error {
		dbTX.AddPreCommit(func(ctx context.Context, dbTX DBTX) error {
			return errors.New("pop")
		})
		dbTX.AddPostCommit(func(ctx context.Context) { postCommitCalled = true })
		dbTX.AddFinalizer(func(ctx context.Context, err error) { finalErr = err })
		return nil
	})
	assert.Regexp(t, "pop", err)
	assert.Regexp(t, "pop", finalErr)
	assert.False(t, postCommitCalled)
}

func TestTransactionPanic(t *testing.T) {
	p, done, err := NewUnitTestPersistence(context.Background())
	require.NoError(t, err)
	defer done()

	var finalErr error
	assert.Panics(t, func() {
		_ = p.Transaction(context.Background(), func(ctx context.Context, dbTX DBTX) error {
			dbTX.AddFinalizer(func(ctx context.Context, err error) { finalErr = err })
			panic("pop")
		})
	})
	assert.Regexp(t, "IO010208.*pop", finalErr)
}

func TestNOTXRejectsHooks(t *testing.T) {
	p, done, err := NewUnitTestPersistence(context.Background())
	require.NoError(t, err)
	defer done()

	notx := p.NOTX()
	assert.False(t, notx.FullTransaction())
	assert.NotNil(t, notx.DB())
	assert.Panics(t, func() { notx.AddPreCommit(func(ctx context.Context, dbTX DBTX) error { return nil }) })
	assert.Panics(t, func() { notx.AddPostCommit(func(ctx context.Context) {}) })
	assert.Panics(t, func() { notx.AddFinalizer(func(ctx context.Context, err error) {}) })
}

func TestPostgresNamedLock(t *testing.T) {
	p, mdb := newMockGormPSQLPersistence(t)
	mdb.ExpectBegin()
	mdb.ExpectExec("pg_advisory_xact_lock").WithArgs(hashCode("mylock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.ExpectCommit()

	err := p.Transaction(context.Background(), func(ctx context.Context, dbTX DBTX) error {
		return p.TakeNamedLock(ctx, dbTX, "mylock")
	})
	require.NoError(t, err)
	assert.NoError(t, mdb.ExpectationsWereMet())
	assert.Equal(t, "postgres", (&postgresProvider{}).DBName())
}

func TestHashCodeNonNegative(t *testing.T) {
	for _, s := range []string{"", "a", "chain", "0x5FbDB2315678afecb367f032d93F642f64180aa3"} {
		assert.GreaterOrEqual(t, hashCode(s), int64(0))
	}
}
