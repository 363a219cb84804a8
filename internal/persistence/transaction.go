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
	"runtime/debug"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"gorm.io/gorm"
)

type DBTX interface {
	// DB for the transaction, bound to the transaction context
	DB() *gorm.DB
	// FullTransaction is false for the NOTX wrapper
	FullTransaction() bool
	// AddPreCommit runs before commit. An error causes a rollback of the transaction
	AddPreCommit(func(ctx context.Context, dbTX DBTX) error)
	// AddPostCommit runs only after a successful commit
	AddPostCommit(func(ctx context.Context))
	// AddFinalizer runs in all cases (including panics) after the transaction ends. A non-nil error means rollback
	AddFinalizer(func(ctx context.Context, err error))
}

type transaction struct {
	txCtx       context.Context
	gdb         *gorm.DB
	preCommits  []func(ctx context.Context, dbTX DBTX) error
	postCommits []func(ctx context.Context)
	finalizers  []func(ctx context.Context, err error)
}

func (t *transaction) DB() *gorm.DB {
	return t.gdb
}

func (t *transaction) FullTransaction() bool {
	return true
}

func (t *transaction) AddPreCommit(fn func(ctx context.Context, dbTX DBTX) error) {
	t.preCommits = append(t.preCommits, fn)
}

func (t *transaction) AddPostCommit(fn func(ctx context.Context)) {
	t.postCommits = append(t.postCommits, fn)
}

func (t *transaction) AddFinalizer(fn func(ctx context.Context, err error)) {
	t.finalizers = append(t.finalizers, fn)
}

func runTransaction(txCtx context.Context, gdb *gorm.DB, fn func(ctx context.Context, dbTX DBTX) error) (err error) {
	completed := false
	tx := &transaction{txCtx: txCtx}
	defer func() {
		if !completed {
			panicData := recover()
			log.L(txCtx).Errorf("Panic within database transaction: %v\n%s", panicData, debug.Stack())
			if err == nil {
				err = i18n.NewError(txCtx, msgs.MsgPersistenceErrorInDBTransaction, panicData)
			}
		}
		for _, fn := range tx.finalizers {
			fn(txCtx, err)
		}
		if err == nil {
			for _, fn := range tx.postCommits {
				fn(txCtx)
			}
		}
		if !completed {
			panic(err)
		}
	}()

	err = gdb.Transaction(func(gormTX *gorm.DB) error {
		tx.gdb = gormTX.WithContext(txCtx)
		innerErr := fn(txCtx, tx)
		for _, fn := range tx.preCommits {
			if innerErr == nil {
				innerErr = fn(txCtx, tx)
			}
		}
		return innerErr
	})

	completed = true
	return err
}

type notx struct {
	gdb *gorm.DB
}

func (n *notx) DB() *gorm.DB {
	return n.gdb
}

func (n *notx) FullTransaction() bool {
	return false
}

func (n *notx) AddPreCommit(func(ctx context.Context, dbTX DBTX) error) {
	panic(i18n.NewError(context.Background(), msgs.MsgPersistenceNoPreCommitInNOTX))
}

func (n *notx) AddPostCommit(func(ctx context.Context)) {
	panic(i18n.NewError(context.Background(), msgs.MsgPersistenceNoPreCommitInNOTX))
}

func (n *notx) AddFinalizer(func(ctx context.Context, err error)) {
	panic(i18n.NewError(context.Background(), msgs.MsgPersistenceNoPreCommitInNOTX))
}
