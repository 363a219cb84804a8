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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kaleido-io/ioweyou/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeConfigYAML = `
db:
  type: sqlite
  sqlite:
    dsn: ":memory:"
    autoMigrate: true
rpcServer:
  http:
    address: 127.0.0.1
    port: 0
  ws:
    address: 127.0.0.1
    port: 0
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Setenv("IOU_NETWORK", "")
	t.Setenv("HARDHAT_NETWORK", "")
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startServe(t *testing.T) node.Node {
	ctx, cancelCtx := context.WithCancel(context.Background())
	opts := &rootOptions{configFile: writeFile(t, "node.yaml", nodeConfigYAML)}
	conf, err := opts.loadConfig(ctx)
	require.NoError(t, err)

	started := make(chan node.Node, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, conf, func(n node.Node) { started <- n })
	}()
	t.Cleanup(func() {
		cancelCtx()
		assert.NoError(t, <-done)
	})
	select {
	case n := <-started:
		return n
	case err := <-done:
		require.FailNow(t, "serve exited", "%v", err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "timed out starting node")
	}
	return nil
}

func TestAccounts(t *testing.T) {
	out, err := runCmd(t, "accounts", "--env-file", ".env")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 20)
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", lines[0])
}

func TestNetworks(t *testing.T) {
	configFile := writeFile(t, "networks.yaml", `
defaultNetwork: localhost
networks:
  private:
    rpc:
      url: http://127.0.0.1:1
`)
	out, err := runCmd(t, "networks", "-f", configFile)
	require.NoError(t, err)
	assert.Contains(t, out, "* localhost\n")
	assert.Contains(t, out, "  private\n")
	assert.Contains(t, out, "  rinkeby\n")

	out, err = runCmd(t, "networks", "-f", configFile, "-n", "private")
	require.NoError(t, err)
	assert.Contains(t, out, "* private\n")
}

func TestServeAndDeploy(t *testing.T) {
	n := startServe(t)

	envFile := writeFile(t, "test.env", fmt.Sprintf("IOU_TEST_RPC_URL=http://%s\n", n.RPCServer().HTTPAddr()))
	t.Cleanup(func() { os.Unsetenv("IOU_TEST_RPC_URL") })
	configFile := writeFile(t, "deploy.yaml", `
networks:
  local:
    rpc:
      url: ${IOU_TEST_RPC_URL}
    chainId: 31337
  wrongchain:
    rpc:
      url: ${IOU_TEST_RPC_URL}
    chainId: 1
`)

	out, err := runCmd(t, "deploy", "-f", configFile, "--env-file", envFile, "-n", "local")
	require.NoError(t, err)
	assert.Regexp(t, "^IOweYou deployed to local:0x[0-9a-f]{40}\n$", out)

	_, err = runCmd(t, "deploy", "-f", configFile, "--env-file", envFile, "-n", "wrongchain")
	assert.Regexp(t, "IO010111", err)

	info, err := n.Chain().NodeInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Contracts)
}

func TestServeWebSocketDeploy(t *testing.T) {
	n := startServe(t)

	configFile := writeFile(t, "deploy.yaml", fmt.Sprintf(`
defaultNetwork: localws
networks:
  localws:
    rpc:
      url: ws://%s
`, n.RPCServer().WSAddr()))
	out, err := runCmd(t, "deploy", "-f", configFile, "--env-file", ".env")
	require.NoError(t, err)
	assert.Regexp(t, "^IOweYou deployed to localws:0x[0-9a-f]{40}\n$", out)
}

func TestCommandErrors(t *testing.T) {
	_, err := runCmd(t, "deploy", "-f", "does-not-exist.yaml")
	assert.Regexp(t, "IO010100", err)

	_, err = runCmd(t, "accounts", "--env-file", "does-not-exist.env")
	assert.Regexp(t, "IO010109", err)

	_, err = runCmd(t, "accounts", "-n", "unknown")
	assert.Regexp(t, "IO010105", err)

	_, err = runCmd(t, "deploy", "-n", "unknown")
	assert.Regexp(t, "IO010105", err)

	configFile := writeFile(t, "bad.yaml", "db: [")
	_, err = runCmd(t, "serve", "-f", configFile)
	assert.Regexp(t, "IO010102", err)
}

func TestServeStartFailure(t *testing.T) {
	configFile := writeFile(t, "node.yaml", `
db:
  type: wrong
`)
	opts := &rootOptions{configFile: configFile}
	conf, err := opts.loadConfig(context.Background())
	require.NoError(t, err)
	err = runServe(context.Background(), conf, nil)
	assert.Regexp(t, "IO010001", err)
}
