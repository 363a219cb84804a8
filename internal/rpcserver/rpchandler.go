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

package rpcserver

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"golang.org/x/sync/errgroup"
)

func (s *rpcServer) rpcHandler(ctx context.Context, r io.Reader, wsc *webSocketConnection) (interface{}, bool) {

	b, err := io.ReadAll(r)
	if err != nil {
		return s.replyRPCParseError(ctx, b, err)
	}

	if log.IsTraceEnabled() {
		log.L(ctx).Tracef("RPC[Server] --> %s", b)
	}

	if s.sniffFirstByte(b) == '[' {
		var rpcArray []*rpcbackend.RPCRequest
		err := json.Unmarshal(b, &rpcArray)
		if err != nil || len(rpcArray) == 0 {
			log.L(ctx).Errorf("Bad RPC array received %s", b)
			return s.replyRPCParseError(ctx, b, err)
		}
		return s.handleRPCBatch(ctx, rpcArray, wsc)
	}

	var rpcRequest rpcbackend.RPCRequest
	if err := json.Unmarshal(b, &rpcRequest); err != nil {
		return s.replyRPCParseError(ctx, b, err)
	}
	return s.processRPCTimed(ctx, -1, &rpcRequest, wsc)
}

func (s *rpcServer) processRPCTimed(ctx context.Context, batchIdx int, rpcRequest *rpcbackend.RPCRequest, wsc *webSocketConnection) (*rpcbackend.RPCResponse, bool) {
	startTime := time.Now()
	log.L(ctx).Debugf("RPC-server[%s] (b=%d) --> %s", rpcRequest.ID, batchIdx, rpcRequest.Method)
	res, isOK := s.processRPC(ctx, rpcRequest, wsc)
	durationMS := float64(time.Since(startTime)) / float64(time.Millisecond)
	if res.Error != nil {
		log.L(ctx).Errorf("RPC-server[%s] (b=%d) <-- %s [%.2fms]: %s", rpcRequest.ID, batchIdx, rpcRequest.Method, durationMS, res.Error.Message)
	} else {
		log.L(ctx).Debugf("RPC-server[%s] (b=%d) <-- %s [%.2fms]", rpcRequest.ID, batchIdx, rpcRequest.Method, durationMS)
	}
	return res, isOK
}

func (s *rpcServer) replyRPCParseError(ctx context.Context, b []byte, err error) (*rpcbackend.RPCResponse, bool) {
	log.L(ctx).Errorf("Request could not be parsed (err=%v): %s", err, b)
	return rpcbackend.RPCErrorResponse(
		i18n.NewError(ctx, msgs.MsgJSONRPCInvalidRequest),
		fftypes.JSONAnyPtr("1"),
		rpcbackend.RPCCodeInvalidRequest,
	), false
}

func (s *rpcServer) sniffFirstByte(data []byte) byte {
	sniffLen := len(data)
	if sniffLen > 100 {
		sniffLen = 100
	}
	for _, b := range data[0:sniffLen] {
		if !unicode.IsSpace(rune(b)) {
			return b
		}
	}
	return 0x00
}

// handleRPCBatch processes the entries of a batch in parallel, up to the batch
// limit, and only reports failure if every request in the batch failed
func (s *rpcServer) handleRPCBatch(ctx context.Context, rpcArray []*rpcbackend.RPCRequest, wsc *webSocketConnection) ([]*rpcbackend.RPCResponse, bool) {
	rpcResponses := make([]*rpcbackend.RPCResponse, len(rpcArray))
	var failCount atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, rpcRequest := range rpcArray {
		g.Go(func() error {
			res, ok := s.processRPCTimed(ctx, i, rpcRequest, wsc)
			rpcResponses[i] = res
			if !ok {
				failCount.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return rpcResponses, int(failCount.Load()) != len(rpcArray)
}
