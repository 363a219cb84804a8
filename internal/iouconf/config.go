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

package iouconf

import (
	"context"
	"os"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/ioweyou/internal/msgs"

	"sigs.k8s.io/yaml"
)

type Config struct {
	Log             LogConfig             `json:"log"`
	DB              DBConfig              `json:"db"`
	RPCServer       RPCServerConfig       `json:"rpcServer"`
	MetricsServer   MetricsServerConfig   `json:"metricsServer"`
	Chain           ChainConfig           `json:"chain"`
	TokenURI        TokenURIConfig        `json:"tokenURI"`
	ReverseRegistry ReverseRegistryConfig `json:"reverseRegistry"`
	Upstream        UpstreamConfig        `json:"upstream"`
}

// ReadAndParseYAMLFile loads YAML (with JSON tags) into the supplied structure.
// ${VAR} references in the file are expanded from the environment before parsing.
func ReadAndParseYAMLFile(ctx context.Context, filePath string, config interface{}) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return i18n.NewError(ctx, msgs.MsgConfigFileMissing, filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return i18n.NewError(ctx, msgs.MsgConfigFileReadError, filePath, err.Error())
	}

	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config)
	if err != nil {
		return i18n.NewError(ctx, msgs.MsgConfigFileParseError, filePath, err.Error())
	}

	return nil
}
