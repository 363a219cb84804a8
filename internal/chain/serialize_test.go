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

package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingPersistence struct {
	persistence.Persistence
	lock         sync.Mutex
	transactions int
	namedLocks   []string
	lockErr      error
}

func (tp *trackingPersistence) Transaction(ctx context.Context, fn func(ctx context.Context, dbTX persistence.DBTX) error) error {
	tp.lock.Lock()
	tp.transactions++
	tp.lock.Unlock()
	return tp.Persistence.Transaction(ctx, fn)
}

func (tp *trackingPersistence) TakeNamedLock(ctx context.Context, dbTX persistence.DBTX, lockName string) error {
	tp.lock.Lock()
	tp.namedLocks = append(tp.namedLocks, lockName)
	tp.lock.Unlock()
	if tp.lockErr != nil {
		return tp.lockErr
	}
	return tp.Persistence.TakeNamedLock(ctx, dbTX, lockName)
}

func (tp *trackingPersistence) reset() {
	tp.lock.Lock()
	defer tp.lock.Unlock()
	tp.transactions = 0
	tp.namedLocks = nil
}

func (tc *testChain) track() *trackingPersistence {
	tp := &trackingPersistence{Persistence: tc.c.p}
	tc.c.p = tp
	return tp
}

func TestSendTakesChainLock(t *testing.T) {
	tc := newTestChain(t)
	tp := tc.track()
	contractAddr := tc.deployIOweYou(t)
	assert.Equal(t, []string{"chain"}, tp.namedLocks)

	tp.reset()
	receipt := tc.send(t, tc.alice, &contractAddr, tc.callData(t, contractAddr, "complete", map[string]any{"tokenId": "42"}))
	assert.Equal(t, ethtypes.HexUint64(ioutypes.ReceiptStatusFailed), receipt.Status)
	// the failed receipt is recorded under the lock in a second transaction
	assert.Equal(t, []string{"chain", "chain"}, tp.namedLocks)
	assert.Equal(t, 2, tp.transactions)
}

func TestSendChainLockFailure(t *testing.T) {
	tc := newTestChain(t)
	tp := tc.track()
	tp.lockErr = fmt.Errorf("pop")

	data, err := iouabi.DeployData(tc.ctx, iouabi.KindIOweYou, map[string]any{
		"reverseRecords": "0x3671aE578E63FdF66ad4F3E12CC0c0d71Ac7510C",
	})
	require.NoError(t, err)
	_, err = tc.c.SendRawTransaction(tc.ctx, tc.sign(t, tc.alice, 0, nil, data))
	assert.Regexp(t, "pop", err)

	nonce, err := tc.c.GetTransactionCount(tc.ctx, tc.alice.Address)
	require.NoError(t, err)
	assert.Zero(t, nonce)
	assert.Empty(t, tc.pub.publications)
}

func TestViewCallsRunOutsideTransaction(t *testing.T) {
	tc := newTestChain(t)
	contractAddr := tc.deployIOweYou(t)
	tp := tc.track()

	var supply struct {
		Supply string `json:"supply"`
	}
	require.NoError(t, tc.call(t, tc.alice, contractAddr, "totalSupply", nil, &supply))
	assert.Equal(t, "0", supply.Supply)
	assert.Zero(t, tp.transactions)

	var created struct {
		TokenID string `json:"tokenId"`
	}
	require.NoError(t, tc.call(t, tc.alice, contractAddr, "create", map[string]any{
		"receiver": tc.bob.Address.String(),
		"promise":  "coffee",
	}, &created))
	assert.Equal(t, "1", created.TokenID)
	assert.Equal(t, 1, tp.transactions)
	assert.Empty(t, tp.namedLocks)

	// the simulated create was rolled back
	require.NoError(t, tc.call(t, tc.alice, contractAddr, "totalSupply", nil, &supply))
	assert.Equal(t, "0", supply.Supply)
}

func TestReadOnlyExecutionRejectsStateChange(t *testing.T) {
	tc := newTestChain(t)
	contractAddr := tc.deployIOweYou(t)

	ec := &contracts.ExecContext{Sender: tc.alice.Address, BlockNumber: 2, ReadOnly: true}
	_, err := tc.c.execute(tc.ctx, tc.c.p.NOTX(), ec, contractAddr, tc.callData(t, contractAddr, "create", map[string]any{
		"receiver": tc.bob.Address.String(),
		"promise":  "lunch",
	}))
	assert.Regexp(t, "IO010608.*create", err)

	_, err = tc.c.execute(tc.ctx, tc.c.p.NOTX(), ec, contractAddr, tc.callData(t, contractAddr, "totalSupply", nil))
	require.NoError(t, err)
}

type blockingPublisher struct {
	capturePublisher
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (bp *blockingPublisher) EthPublish(eventType string, result interface{}, match func(params []byte) bool) {
	bp.once.Do(func() {
		close(bp.entered)
		<-bp.release
	})
	bp.capturePublisher.EthPublish(eventType, result, match)
}

func TestSlowPublisherDoesNotBlockSends(t *testing.T) {
	tc := newTestChain(t)
	bp := &blockingPublisher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tc.c.publisher = bp

	data, err := iouabi.DeployData(tc.ctx, iouabi.KindIOweYou, map[string]any{
		"reverseRecords": "0x3671aE578E63FdF66ad4F3E12CC0c0d71Ac7510C",
	})
	require.NoError(t, err)
	aliceTX := tc.sign(t, tc.alice, 0, nil, data)
	bobTX := tc.sign(t, tc.bob, 0, nil, data)
	aliceDone := make(chan error, 1)
	go func() {
		_, err := tc.c.SendRawTransaction(tc.ctx, aliceTX)
		aliceDone <- err
	}()

	select {
	case <-bp.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first transaction was never published")
	}

	bobDone := make(chan error, 1)
	go func() {
		_, err := tc.c.SendRawTransaction(tc.ctx, bobTX)
		bobDone <- err
	}()
	select {
	case err := <-bobDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second transaction blocked behind the publisher")
	}

	close(bp.release)
	require.NoError(t, <-aliceDone)

	block, err := tc.c.BlockNumber(tc.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), block)
}
