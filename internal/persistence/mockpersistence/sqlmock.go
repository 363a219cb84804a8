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

package mockpersistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DATA-DOG/go-sqlmock"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var SQLMockDefaults = &iouconf.SQLDBConfig{
	MaxOpenConns:    confutil.P(1),
	MaxIdleConns:    confutil.P(1),
	ConnMaxIdleTime: confutil.P("0"),
	ConnMaxLifetime: confutil.P("0"),
	AutoMigrate:     confutil.P(false),
	StatementCache:  confutil.P(false),
}

// SQLMockProvider gives a persistence layer over go-sqlmock, for driving DB failure paths
type SQLMockProvider struct {
	DB   *sql.DB
	Mock sqlmock.Sqlmock
	P    persistence.Persistence
}

func NewSQLMockProvider() (p *SQLMockProvider, err error) {
	mp := &SQLMockProvider{}
	mp.DB, mp.Mock, err = sqlmock.New()
	if err == nil {
		mp.P, err = persistence.NewSQLProvider(context.Background(), mp, &iouconf.SQLDBConfig{
			DSN: "mocked",
		}, SQLMockDefaults)
	}
	return mp, err
}

func (p *SQLMockProvider) DBName() string {
	return "sqlmock"
}

func (p *SQLMockProvider) Open(uri string) gorm.Dialector {
	return gormPostgres.New(gormPostgres.Config{Conn: p.DB})
}

func (p *SQLMockProvider) GetMigrationDriver(db *sql.DB) (migratedb.Driver, error) {
	return nil, fmt.Errorf("not supported")
}

func (p *SQLMockProvider) TakeNamedLock(ctx context.Context, dbTX persistence.DBTX, lockName string) error {
	return nil
}

// ExpectSelectError fails the next query against the table
func (p *SQLMockProvider) ExpectSelectError(table string, err error) {
	p.Mock.ExpectQuery("SELECT.*" + table).WillReturnError(err)
}

// ExpectTokenIDAllocation covers the read and increment of a contract's next token ID.
// A non-nil updateErr fails the increment.
func (p *SQLMockProvider) ExpectTokenIDAllocation(next uint64, updateErr error) {
	p.Mock.ExpectQuery("SELECT.*next_token_id").WillReturnRows(sqlmock.NewRows([]string{"next_token_id"}).AddRow(next))
	update := p.Mock.ExpectExec("UPDATE.*contracts")
	if updateErr != nil {
		update.WillReturnError(updateErr)
	} else {
		update.WillReturnResult(sqlmock.NewResult(0, 1))
	}
}
