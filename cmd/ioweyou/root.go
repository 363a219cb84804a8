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

	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/networks"
	"github.com/spf13/cobra"
)

// cliConfig is the node configuration, plus the networks the client commands can target
type cliConfig struct {
	iouconf.Config
	iouconf.NetworksConfig
}

type rootOptions struct {
	configFile string
	envFile    string
	network    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "ioweyou",
		Short:        "IOU NFT node and deployment tooling",
		Long:         `Runs a JSON/RPC node hosting IOweYou contracts, and deploys and inspects them on configured networks`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "f", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", networks.DefaultEnvFile, "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().StringVarP(&opts.network, "network", "n", "", "network to use (defaults to $IOU_NETWORK, $HARDHAT_NETWORK, then the configured default)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newDeployCmd(opts))
	rootCmd.AddCommand(newAccountsCmd(opts))
	rootCmd.AddCommand(newNetworksCmd(opts))
	return rootCmd
}

func (opts *rootOptions) loadConfig(ctx context.Context) (*cliConfig, error) {
	if err := networks.LoadEnv(ctx, opts.envFile); err != nil {
		return nil, err
	}
	conf := &cliConfig{}
	if opts.configFile != "" {
		if err := iouconf.ReadAndParseYAMLFile(ctx, opts.configFile, conf); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func (opts *rootOptions) networkName(conf *cliConfig) string {
	if opts.network != "" {
		return opts.network
	}
	return networks.SelectedName(&conf.NetworksConfig)
}
