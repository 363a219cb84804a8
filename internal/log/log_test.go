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

package log

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogConfig() {
	InitConfig(&iouconf.LogConfig{})
}

func TestLogContext(t *testing.T) {
	ctx := WithLogField(context.Background(), "myfield", "myvalue")
	assert.Equal(t, "myvalue", L(ctx).Data["myfield"])
}

func TestLogComponent(t *testing.T) {
	ctx := WithComponent(context.Background(), "ledger")
	assert.Equal(t, "ledger", L(ctx).Data["component"])
}

func TestLogContextLimited(t *testing.T) {
	ctx := WithLogField(context.Background(), "myfield", "0123456789012345678901234567890123456789012345678901234567890123456789")
	assert.Equal(t, "0123456789012345678901234567890123456789012345678901234567890...", L(ctx).Data["myfield"])
}

func TestSettingLevels(t *testing.T) {
	defer SetLevel("info")
	for input, expected := range map[string]logrus.Level{
		"eRrOr":          logrus.ErrorLevel,
		"WARNING":        logrus.WarnLevel,
		"warn":           logrus.WarnLevel,
		"DEBUG":          logrus.DebugLevel,
		"trace":          logrus.TraceLevel,
		"info":           logrus.InfoLevel,
		"something else": logrus.InfoLevel,
	} {
		SetLevel(input)
		assert.Equal(t, expected, logrus.GetLevel(), input)
	}
	SetLevel("warning")
	assert.Equal(t, "warning", GetLevel())
	SetLevel("debug")
	assert.True(t, IsDebugEnabled())
	SetLevel("trace")
	assert.True(t, IsTraceEnabled())
	assert.Equal(t, "trace", GetLevel())
}

func TestSetFormattingVariants(t *testing.T) {
	defer resetLogConfig()
	for _, conf := range []*iouconf.LogConfig{
		{DisableColor: confutil.P(true), UTC: confutil.P(true)},
		{Output: confutil.P("stdout")},
		{Output: confutil.P("stderr"), Format: confutil.P("detailed")},
		{Format: confutil.P("json")},
	} {
		InitConfig(conf)
		L(context.Background()).Infof("formatted")
	}
}

func TestSetFormattingFile(t *testing.T) {
	defer resetLogConfig()
	logFile := path.Join(t.TempDir(), "ioweyou.log")
	InitConfig(&iouconf.LogConfig{
		Output: confutil.P("file"),
		File: iouconf.LogFileConfig{
			Filename: confutil.P(logFile),
		},
	})
	L(context.Background()).Infof("File logs")

	fileExists, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.False(t, fileExists.IsDir())
}
