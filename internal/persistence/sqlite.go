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
	"database/sql"
	"strings"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	gormSQLite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sqliteProvider struct{}

func newSQLiteProvider(ctx context.Context, conf *iouconf.DBConfig) (p Persistence, err error) {
	return NewSQLProvider(ctx, &sqliteProvider{}, &conf.SQLite.SQLDBConfig, iouconf.SQLiteDefaults)
}

func (p *sqliteProvider) DBName() string {
	return "sqlite"
}

func (p *sqliteProvider) Open(uri string) gorm.Dialector {
	return gormSQLite.Open(sqliteDSN(uri))
}

// sqliteDSN puts file databases into WAL mode with a busy timeout. With the
// default single connection pool all access is serialized by the pool, and
// configuring maxOpenConns above one lets reads proceed alongside the writer.
// DSNs that already carry query parameters, and in-memory databases, are used
// as supplied.
func sqliteDSN(uri string) string {
	if uri == ":memory:" || strings.Contains(uri, "mode=memory") || strings.Contains(uri, "?") {
		return uri
	}
	return uri + "?_journal_mode=WAL&_busy_timeout=5000"
}

func (p *sqliteProvider) GetMigrationDriver(db *sql.DB) (migratedb.Driver, error) {
	return migratesqlite3.WithInstance(db, &migratesqlite3.Config{})
}

// TakeNamedLock is a no-op, as SQLite permits a single writer connection
func (p *sqliteProvider) TakeNamedLock(ctx context.Context, dbTX DBTX, lockName string) error {
	return nil
}
