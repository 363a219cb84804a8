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

package iouclient

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/rpcclient"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

type Options struct {
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

var DefaultOptions = Options{
	ReceiptPollInterval: 100 * time.Millisecond,
	ReceiptTimeout:      30 * time.Second,
}

// RevertError is returned when a call reverts, or a transaction is mined with a
// failed status. Receipt is only set for transactions.
type RevertError struct {
	err     error
	Reason  string
	Receipt *ioutypes.TransactionReceipt
}

func (e *RevertError) Error() string {
	return e.err.Error()
}

type Client struct {
	rpc     rpcclient.Client
	ws      rpcclient.WSClient
	chainID uint64
	opts    Options

	signerLock sync.Mutex
	signers    map[ethtypes.Address0xHex]*sync.Mutex
}

// Connect dials an http(s) or ws(s) JSON/RPC endpoint, and reads its chain ID
func Connect(ctx context.Context, endpoint string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgClientInvalidHTTPURL, endpoint)
	}
	switch u.Scheme {
	case "http", "https":
		return ConnectHTTP(ctx, &iouconf.HTTPClientConfig{URL: endpoint})
	case "ws", "wss":
		wsConf := &iouconf.WSClientConfig{}
		wsConf.URL = endpoint
		ws, err := rpcclient.NewWSClient(ctx, wsConf)
		if err == nil {
			err = ws.Connect(ctx)
		}
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgClientInvalidWebSocketURL, endpoint)
		}
		c, err := NewClient(ctx, ws, DefaultOptions)
		if err != nil {
			ws.Close()
			return nil, err
		}
		c.ws = ws
		return c, nil
	default:
		return nil, i18n.NewError(ctx, msgs.MsgClientInvalidHTTPURL, endpoint)
	}
}

// ConnectHTTP uses the full HTTP client configuration, including headers and auth
func ConnectHTTP(ctx context.Context, conf *iouconf.HTTPClientConfig) (*Client, error) {
	rpc, err := rpcclient.NewHTTPClient(ctx, conf)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, rpc, DefaultOptions)
}

func NewClient(ctx context.Context, rpc rpcclient.Client, opts Options) (*Client, error) {
	c := &Client{
		rpc:     rpc,
		opts:    opts,
		signers: map[ethtypes.Address0xHex]*sync.Mutex{},
	}
	var chainID ethtypes.HexUint64
	if err := c.callRPC(ctx, &chainID, "eth_chainId"); err != nil {
		return nil, err
	}
	c.chainID = chainID.Uint64()
	return c, nil
}

func (c *Client) Close() {
	if c.ws != nil {
		c.ws.Close()
	}
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

func (c *Client) callRPC(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if rpcErr := c.rpc.CallRPC(ctx, result, method, params...); rpcErr != nil {
		return i18n.WrapError(ctx, rpcErr, msgs.MsgClientRPCFailed, method, rpcErr.Error())
	}
	return nil
}

func (c *Client) lockSigner(addr ethtypes.Address0xHex) func() {
	c.signerLock.Lock()
	l := c.signers[addr]
	if l == nil {
		l = &sync.Mutex{}
		c.signers[addr] = l
	}
	c.signerLock.Unlock()
	l.Lock()
	return l.Unlock
}

// SendTransaction signs and submits a transaction, then waits for its receipt.
// Sends from the same signer are serialized so each takes the next nonce.
func (c *Client) SendTransaction(ctx context.Context, signer *secp256k1.KeyPair, to *ethtypes.Address0xHex, data ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error) {
	if signer == nil {
		return nil, i18n.NewError(ctx, msgs.MsgClientNoSigner)
	}
	hash, err := c.submit(ctx, signer, to, data)
	if err != nil {
		return nil, err
	}
	receipt, err := c.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != ioutypes.ReceiptStatusSuccess {
		reason, _ := iouabi.DecodeRevert(ctx, receipt.RevertReason)
		return receipt, &RevertError{
			err:     i18n.NewError(ctx, msgs.MsgClientTransactionReverted, hash, reason),
			Reason:  reason,
			Receipt: receipt,
		}
	}
	return receipt, nil
}

func (c *Client) submit(ctx context.Context, signer *secp256k1.KeyPair, to *ethtypes.Address0xHex, data ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
	defer c.lockSigner(signer.Address)()

	var nonce ethtypes.HexUint64
	if err := c.callRPC(ctx, &nonce, "eth_getTransactionCount", signer.Address, "pending"); err != nil {
		return nil, err
	}
	tx := &ethsigner.Transaction{
		Nonce:    ethtypes.NewHexInteger(new(big.Int).SetUint64(nonce.Uint64())),
		GasLimit: ethtypes.NewHexInteger(big.NewInt(0)),
		To:       to,
		Data:     data,
	}
	raw, err := tx.SignLegacyEIP155(signer, int64(c.chainID))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgClientSignFailed)
	}
	var hash ethtypes.HexBytes0xPrefix
	if err := c.callRPC(ctx, &hash, "eth_sendRawTransaction", ethtypes.HexBytes0xPrefix(raw)); err != nil {
		return nil, err
	}
	log.L(ctx).Debugf("Submitted transaction %s from %s nonce=%d", hash, signer.Address.String(), nonce.Uint64())
	return hash, nil
}

// WaitForReceipt polls until the receipt is available, or the receipt timeout passes
func (c *Client) WaitForReceipt(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error) {
	timeout := time.NewTimer(c.opts.ReceiptTimeout)
	defer timeout.Stop()
	for {
		var receipt *ioutypes.TransactionReceipt
		if err := c.callRPC(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-time.After(c.opts.ReceiptPollInterval):
		case <-timeout.C:
			return nil, i18n.NewError(ctx, msgs.MsgClientReceiptTimeout, hash)
		case <-ctx.Done():
			return nil, i18n.NewError(ctx, msgs.MsgContextCanceled)
		}
	}
}

// Call runs a read-only call of the function, decoding the outputs into the target.
// A revert returns a RevertError with the reason.
func (c *Client) Call(ctx context.Context, from *ethtypes.Address0xHex, to ethtypes.Address0xHex, fn *abi.Entry, inputs, outputs any) error {
	if inputs == nil {
		inputs = map[string]any{}
	}
	data, err := iouabi.EncodeCall(ctx, fn, inputs)
	if err != nil {
		return err
	}
	var result ethtypes.HexBytes0xPrefix
	rpcErr := c.rpc.CallRPC(ctx, &result, "eth_call", &ioutypes.CallRequest{From: from, To: &to, Data: data}, "latest")
	if rpcErr != nil {
		if rpcErr.RPCError().Code == rpcclient.RPCCodeExecutionReverted {
			return c.revertFromRPCError(ctx, rpcErr)
		}
		return i18n.WrapError(ctx, rpcErr, msgs.MsgClientRPCFailed, "eth_call", rpcErr.Error())
	}
	if outputs == nil {
		return nil
	}
	return iouabi.DecodeOutputs(ctx, fn, result, outputs)
}

func (c *Client) revertFromRPCError(ctx context.Context, rpcErr rpcclient.ErrorRPC) error {
	var data ethtypes.HexBytes0xPrefix
	reason := rpcErr.Error()
	if err := json.Unmarshal(rpcErr.RPCError().Data.Bytes(), &data); err == nil && len(data) > 0 {
		if decoded, err := iouabi.DecodeRevert(ctx, data); err == nil {
			reason = decoded
		}
	}
	return &RevertError{
		err:    i18n.NewError(ctx, msgs.MsgChainExecutionReverted, reason),
		Reason: reason,
	}
}

// Deploy deploys an IOweYou contract with the given ENS reverse records address
func (c *Client) Deploy(ctx context.Context, signer *secp256k1.KeyPair, reverseRegistry ethtypes.Address0xHex) (*IOweYou, *ioutypes.TransactionReceipt, error) {
	addr, receipt, err := c.deploy(ctx, signer, iouabi.KindIOweYou, map[string]any{
		"reverseRecords": reverseRegistry.String(),
	})
	if err != nil {
		return nil, receipt, err
	}
	return c.At(*addr).Connect(signer), receipt, nil
}

// DeployTemplateTokenURI deploys a token URI resolver that renders the template
// with .TokenID, .Contract and .Caller
func (c *Client) DeployTemplateTokenURI(ctx context.Context, signer *secp256k1.KeyPair, template string) (*ethtypes.Address0xHex, *ioutypes.TransactionReceipt, error) {
	return c.deploy(ctx, signer, iouabi.KindTemplateTokenURI, map[string]any{
		"template": template,
	})
}

func (c *Client) deploy(ctx context.Context, signer *secp256k1.KeyPair, kind iouabi.ContractKind, args map[string]any) (*ethtypes.Address0xHex, *ioutypes.TransactionReceipt, error) {
	data, err := iouabi.DeployData(ctx, kind, args)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := c.SendTransaction(ctx, signer, nil, data)
	if err != nil {
		return nil, receipt, err
	}
	if receipt.ContractAddress == nil {
		return nil, receipt, i18n.NewError(ctx, msgs.MsgClientNoContractAddress, receipt.TransactionHash)
	}
	log.L(ctx).Infof("Deployed %s to %s", kind, receipt.ContractAddress.String())
	return receipt.ContractAddress, receipt, nil
}

// TemplateTokenURI reads the template of a deployed resolver
func (c *Client) TemplateTokenURI(ctx context.Context, addr ethtypes.Address0xHex) (string, error) {
	fn := iouabi.TemplateTokenURIABI.Functions()["template"]
	var out struct {
		Template string `json:"template"`
	}
	err := c.Call(ctx, nil, addr, fn, nil, &out)
	return out.Template, err
}
