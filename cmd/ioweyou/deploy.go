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

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/networks"
	"github.com/kaleido-io/ioweyou/pkg/iouclient"
	"github.com/spf13/cobra"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an IOweYou contract, with the ENS reverse records of the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return runDeploy(cmd.Context(), conf, opts.networkName(conf), cmd.OutOrStdout())
		},
	}
}

func connectNetwork(ctx context.Context, n *networks.Network) (*iouclient.Client, error) {
	var c *iouclient.Client
	var err error
	if u, _ := url.Parse(n.RPC.URL); u != nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		c, err = iouclient.Connect(ctx, n.RPC.URL)
	} else {
		c, err = iouclient.ConnectHTTP(ctx, &n.RPC)
	}
	if err != nil {
		return nil, err
	}
	if n.ChainID != nil && *n.ChainID != c.ChainID() {
		c.Close()
		return nil, i18n.NewError(ctx, msgs.MsgConfigChainIDMismatch, n.Name, *n.ChainID, c.ChainID())
	}
	return c, nil
}

func runDeploy(ctx context.Context, conf *cliConfig, name string, out io.Writer) error {
	n, err := networks.Resolve(ctx, &conf.NetworksConfig, name)
	if err != nil {
		return err
	}
	c, err := connectNetwork(ctx, n)
	if err != nil {
		return err
	}
	defer c.Close()

	iou, _, err := c.Deploy(ctx, n.Wallet.Account(0).KeyPair, n.ReverseRegistry)
	if err != nil {
		return err
	}
	addr := iou.Address()
	_, err = fmt.Fprintf(out, "IOweYou deployed to %s:%s\n", name, addr.String())
	return err
}
