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

package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxAttempts int) *Retry {
	return NewRetryLimited(&iouconf.RetryConfigWithMax{
		RetryConfig: iouconf.RetryConfig{
			InitialDelay: confutil.P("1ms"),
			MaxDelay:     confutil.P("2ms"),
			Factor:       confutil.P(4.0),
		},
		MaxAttempts: confutil.P(maxAttempts),
	})
}

func TestRetryUntilSuccess(t *testing.T) {
	r := fastRetry(0)
	calls := 0
	err := r.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		if attempt < 3 {
			return true, fmt.Errorf("pop")
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryMaxAttempts(t *testing.T) {
	r := fastRetry(2)
	calls := 0
	err := r.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		return true, fmt.Errorf("pop")
	})
	assert.EqualError(t, err, "pop")
	assert.Equal(t, 2, calls)
}

func TestRetryNotRetryable(t *testing.T) {
	r := fastRetry(0)
	calls := 0
	err := r.Do(context.Background(), func(attempt int) (bool, error) {
		calls++
		return false, fmt.Errorf("pop")
	})
	assert.EqualError(t, err, "pop")
	assert.Equal(t, 1, calls)
}

func TestRetryContextCanceled(t *testing.T) {
	r := NewRetryIndefinite(&iouconf.RetryConfig{InitialDelay: confutil.P("1h")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, func(attempt int) (bool, error) {
		return true, fmt.Errorf("pop")
	})
	assert.Regexp(t, "IO010000", err)
}

func TestWaitDelayCapped(t *testing.T) {
	r := fastRetry(0)
	assert.Equal(t, 4.0, r.factor)
	start := time.Now()
	require.NoError(t, r.WaitDelay(context.Background(), 5))
	assert.Less(t, time.Since(start), 1*time.Second)
}
