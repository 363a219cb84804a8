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
	"os"
	"os/signal"
	"syscall"

	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/node"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the node until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()
			return runServe(ctx, conf, nil)
		},
	}
}

func runServe(ctx context.Context, conf *cliConfig, started func(node.Node)) error {
	n := node.NewNode(ctx, &conf.Config)
	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()
	log.L(ctx).Infof("Node %s serving JSON/RPC on %s (HTTP) and %s (WebSocket)", n.ID(), n.RPCServer().HTTPAddr(), n.RPCServer().WSAddr())
	if started != nil {
		started(n)
	}
	<-ctx.Done()
	log.L(ctx).Infof("Shutting down")
	return nil
}
