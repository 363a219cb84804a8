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
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

type formatting struct {
	format             string
	disableColor       bool
	forceColor         bool
	timestampFormat    string
	utc                bool
	jsonTimestampField string
	jsonLevelField     string
	jsonMessageField   string
	jsonFuncField      string
	jsonFileField      string
}

type utcFormat struct {
	f logrus.Formatter
}

func (utc *utcFormat) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return utc.f.Format(e)
}

func setFormatting(f *formatting) {
	var formatter logrus.Formatter
	reportCaller := false
	switch f.format {
	case "json":
		formatter = &logrus.JSONFormatter{
			TimestampFormat: f.timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  f.jsonTimestampField,
				logrus.FieldKeyLevel: f.jsonLevelField,
				logrus.FieldKeyMsg:   f.jsonMessageField,
				logrus.FieldKeyFunc:  f.jsonFuncField,
				logrus.FieldKeyFile:  f.jsonFileField,
			},
		}
	case "detailed":
		formatter = &logrus.TextFormatter{
			DisableColors:   f.disableColor,
			ForceColors:     f.forceColor,
			TimestampFormat: f.timestampFormat,
			FullTimestamp:   true,
		}
		reportCaller = true
	default: // "simple"
		formatter = &prefixed.TextFormatter{
			DisableColors:   f.disableColor,
			ForceColors:     f.forceColor,
			TimestampFormat: f.timestampFormat,
			ForceFormatting: true,
			FullTimestamp:   true,
		}
	}
	if f.utc {
		formatter = &utcFormat{f: formatter}
	}
	logrus.SetReportCaller(reportCaller)
	logrus.SetFormatter(formatter)
}
