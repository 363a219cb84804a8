// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msgs

import (
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

const iouPrefix = "IO01"

var registered = false
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	if !registered {
		i18n.RegisterPrefix(iouPrefix, "IOweYou Node")
		registered = true
	}
	if !strings.HasPrefix(key, iouPrefix) {
		panic(fmt.Errorf("must have prefix '%s': %s", iouPrefix, key))
	}
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Generic IO0100XX
	MsgContextCanceled = ffe("IO010000", "Context canceled")
	MsgNodeStartFailed = ffe("IO010001", "Failed to start node component %s")

	// Config IO0101XX
	MsgConfigFileMissing      = ffe("IO010100", "Config file not found at path: %s")
	MsgConfigFileReadError    = ffe("IO010101", "Failed to read config file %s with error: %s")
	MsgConfigFileParseError   = ffe("IO010102", "Failed to parse config file %s with error: %s")
	MsgConfigInvalidTemplate  = ffe("IO010103", "Invalid token URI template for '%s'")
	MsgConfigInvalidStaticKey = ffe("IO010104", "Invalid static address '%s' in %s configuration")
	MsgConfigUnknownNetwork   = ffe("IO010105", "Unknown network '%s'")
	MsgConfigNoAccounts       = ffe("IO010106", "No signing accounts configured for network '%s'")
	MsgConfigInvalidMnemonic  = ffe("IO010107", "Invalid BIP-39 mnemonic")
	MsgConfigInvalidKey       = ffe("IO010108", "Invalid private key at index %d")
	MsgConfigEnvLoadFailed    = ffe("IO010109", "Failed to load environment file %s")
	MsgConfigInvalidHDPath    = ffe("IO010110", "Invalid HD derivation path '%s'")
	MsgConfigChainIDMismatch  = ffe("IO010111", "Network '%s' is configured with chain ID %d but the node reports %d")

	// Persistence IO0102XX
	MsgPersistenceInvalidType          = ffe("IO010200", "Invalid persistence type: %s")
	MsgPersistenceMissingDSN           = ffe("IO010201", "Missing database connection Data Source Name (DSN)")
	MsgPersistenceInitFailed           = ffe("IO010202", "Database init failed")
	MsgPersistenceMigrationFailed      = ffe("IO010203", "Database migration failed")
	MsgPersistenceNoEmbeddedMigrations = ffe("IO010204", "No migrations are available for database type '%s'")
	MsgPersistenceInvalidDSNTemplate   = ffe("IO010205", "dsnParams were provided, but the DSN supplied is not a valid template")
	MsgPersistenceDSNParamLoadFile     = ffe("IO010206", "Failed to load dsnParams[%s] from '%s'")
	MsgPersistenceDSNTemplateFail      = ffe("IO010207", "Templated substitution into database connection DSN failed")
	MsgPersistenceErrorInDBTransaction = ffe("IO010208", "Panic within database transaction: %v")
	MsgPersistenceNoPreCommitInNOTX    = ffe("IO010209", "Database operation requires a transaction")

	// HTTPServer IO0103XX
	MsgHTTPServerStartFailed        = ffe("IO010300", "Failed to start server on '%s'")
	MsgHTTPServerMissingPort        = ffe("IO010301", "HTTP server port must be specified for '%s'")
	MsgHTTPServerNoWSUpgradeSupport = ffe("IO010302", "HTTP server does not support WebSocket upgrade (%T)")

	// JSON/RPC IO0104XX
	MsgJSONRPCInvalidRequest      = ffe("IO010400", "Invalid JSON/RPC request data")
	MsgJSONRPCMissingRequestID    = ffe("IO010401", "Invalid JSON/RPC request. Must set request ID")
	MsgJSONRPCUnsupportedMethod   = ffe("IO010402", "method not supported %s")
	MsgJSONRPCIncorrectParamCount = ffe("IO010403", "method %s requires %d params (supplied=%d)")
	MsgJSONRPCInvalidParam        = ffe("IO010404", "method %s parameter %d invalid: %s")
	MsgJSONRPCResultSerialization = ffe("IO010405", "method %s result serialization failed: %s")

	// Contract IO0105XX
	MsgContractUnknownKind       = ffe("IO010500", "Unknown contract kind code %s")
	MsgContractDeployDataInvalid = ffe("IO010501", "Deployment data must start with a 32 byte contract kind code")
	MsgContractNotFound          = ffe("IO010502", "No contract deployed at address %s")
	MsgContractUnknownFunction   = ffe("IO010503", "Function selector %s not found on %s contract")
	MsgContractCallDataInvalid   = ffe("IO010504", "Invalid call data for function %s")
	MsgContractEncodeFailed      = ffe("IO010505", "Failed to encode %s for function %s")
	MsgContractRevertDecode      = ffe("IO010506", "Unable to decode revert data: %s")

	// Chain IO0106XX
	MsgChainInvalidRawTx       = ffe("IO010600", "Invalid raw transaction")
	MsgChainNonceTooLow        = ffe("IO010601", "nonce too low: address %s, tx: %d state: %d")
	MsgChainNonceTooHigh       = ffe("IO010602", "nonce too high: address %s, tx: %d state: %d")
	MsgChainValueNotSupported  = ffe("IO010603", "Transactions transferring value are not supported")
	MsgChainAlreadyKnown       = ffe("IO010604", "already known: %s")
	MsgChainReceiptLoadFailed  = ffe("IO010605", "Failed to load receipt for transaction %s")
	MsgChainExecutionReverted  = ffe("IO010606", "execution reverted: %s")
	MsgChainUnsupportedBlockID = ffe("IO010607", "Unsupported block identifier '%s'")
	MsgChainStateChangeInView  = ffe("IO010608", "Function '%s' changes state and cannot be executed read-only")

	// Upstream lookups IO0107XX
	MsgUpstreamCallFailed      = ffe("IO010700", "Upstream eth_call to %s failed: %s")
	MsgUpstreamResultInvalid   = ffe("IO010701", "Upstream eth_call to %s returned invalid data")
	MsgTokenURITemplateFailed  = ffe("IO010703", "Token URI template at %s failed for token %s")
	MsgTokenURIInvalidTemplate = ffe("IO010704", "Invalid token URI template: %s")

	// Client IO0108XX
	MsgClientRPCFailed           = ffe("IO010800", "JSON/RPC %s failed: %s")
	MsgClientReceiptTimeout      = ffe("IO010801", "Timed out waiting for receipt of transaction %s")
	MsgClientTransactionReverted = ffe("IO010802", "Transaction %s reverted: %s")
	MsgClientSignFailed          = ffe("IO010803", "Failed to sign transaction")
	MsgClientNoContractAddress   = ffe("IO010804", "Deployment transaction %s did not return a contract address")
	MsgClientNoSigner            = ffe("IO010805", "A signer must be connected to send transactions")
	MsgClientInvalidHTTPURL      = ffe("IO010806", "Invalid HTTP URL: %s")
	MsgClientInvalidWebSocketURL = ffe("IO010807", "Invalid WebSocket URL: %s")
)
