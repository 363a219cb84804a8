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
	"io"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	rootLogger = logrus.NewEntry(logrus.StandardLogger())

	// L accesses the current logger from the context
	L = loggerFromContext

	initAtLeastOnce atomic.Bool
)

type ctxLogKey struct{}

var levelNames = map[string]logrus.Level{
	"error":   logrus.ErrorLevel,
	"warn":    logrus.WarnLevel,
	"warning": logrus.WarnLevel,
	"info":    logrus.InfoLevel,
	"debug":   logrus.DebugLevel,
	"trace":   logrus.TraceLevel,
}

func InitConfig(conf *iouconf.LogConfig) {
	initAtLeastOnce.Store(true) // must store before SetLevel

	defs := iouconf.LogDefaults
	SetLevel(confutil.StringNotEmpty(conf.Level, *defs.Level))

	if out := outputFor(conf); out != nil {
		logrus.SetOutput(out)
	}

	setFormatting(&formatting{
		format:             confutil.StringNotEmpty(conf.Format, *defs.Format),
		disableColor:       confutil.Bool(conf.DisableColor, *defs.DisableColor),
		forceColor:         confutil.Bool(conf.ForceColor, *defs.ForceColor),
		timestampFormat:    confutil.StringNotEmpty(conf.TimeFormat, *defs.TimeFormat),
		utc:                confutil.Bool(conf.UTC, *defs.UTC),
		jsonTimestampField: confutil.StringNotEmpty(conf.JSON.TimestampField, *defs.JSON.TimestampField),
		jsonLevelField:     confutil.StringNotEmpty(conf.JSON.LevelField, *defs.JSON.LevelField),
		jsonMessageField:   confutil.StringNotEmpty(conf.JSON.MessageField, *defs.JSON.MessageField),
		jsonFuncField:      confutil.StringNotEmpty(conf.JSON.FuncField, *defs.JSON.FuncField),
		jsonFileField:      confutil.StringNotEmpty(conf.JSON.FileField, *defs.JSON.FileField),
	})
}

func outputFor(conf *iouconf.LogConfig) io.Writer {
	defs := iouconf.LogDefaults
	switch confutil.StringNotEmpty(conf.Output, *defs.Output) {
	case "file":
		filename := confutil.StringNotEmpty(conf.File.Filename, *defs.File.Filename)
		rootLogger.Infof("Logs diverted to %s", filename)
		maxSizeBytes := confutil.ByteSize(conf.File.MaxSize, 0, *defs.File.MaxSize)
		maxAge := confutil.DurationMin(conf.File.MaxAge, 0, *defs.File.MaxAge)
		return &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    int(math.Ceil(float64(maxSizeBytes) / 1024 / 1024)), // megabytes
			MaxBackups: confutil.IntMin(conf.File.MaxBackups, 0, *defs.File.MaxBackups),
			MaxAge:     int(math.Ceil(float64(maxAge) / float64(24*time.Hour))), // days
			Compress:   confutil.Bool(conf.File.Compress, *defs.File.Compress),
		}
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return nil
	}
}

func IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

func IsTraceEnabled() bool {
	return logrus.IsLevelEnabled(logrus.TraceLevel)
}

// EnsureInit applies default config when nothing has called InitConfig (unit tests)
func EnsureInit() {
	if !initAtLeastOnce.Load() {
		InitConfig(&iouconf.LogConfig{})
	}
}

// WithLogger adds the specified logger to the context
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	EnsureInit()
	return context.WithValue(ctx, ctxLogKey{}, logger)
}

// WithLogField adds the specified field to the logger in the context
func WithLogField(ctx context.Context, key, value string) context.Context {
	EnsureInit()
	if len(value) > 61 {
		value = value[0:61] + "..."
	}
	return WithLogger(ctx, loggerFromContext(ctx).WithField(key, value))
}

// WithComponent tags all logging on the returned context with the named node component
func WithComponent(ctx context.Context, component string) context.Context {
	return WithLogField(ctx, "component", component)
}

func loggerFromContext(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(ctxLogKey{})
	if logger == nil {
		return rootLogger
	}
	return logger.(*logrus.Entry)
}

func GetLevel() string {
	switch l := logrus.GetLevel(); l {
	case logrus.ErrorLevel, logrus.WarnLevel, logrus.DebugLevel, logrus.TraceLevel:
		return l.String()
	default:
		return "info"
	}
}

func SetLevel(level string) {
	l, ok := levelNames[strings.ToLower(level)]
	if !ok {
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)
}
