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
	"fmt"

	"github.com/kaleido-io/ioweyou/internal/networks"
	"github.com/spf13/cobra"
)

func newAccountsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Print the list of accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			n, err := networks.Resolve(cmd.Context(), &conf.NetworksConfig, opts.networkName(conf))
			if err != nil {
				return err
			}
			for _, a := range n.Wallet.Accounts() {
				fmt.Fprintln(cmd.OutOrStdout(), a.Address.String())
			}
			return nil
		},
	}
}

func newNetworksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "Print the available networks, marking the selected one",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			selected := opts.networkName(conf)
			for _, name := range networks.Names(&conf.NetworksConfig) {
				marker := " "
				if name == selected {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
