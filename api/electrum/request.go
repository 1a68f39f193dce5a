// Copyright 2023 Electra Labs
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package electrum

import (
	"encoding/json"
)

// JSON-RPC 2.0 error codes, plus the generic application error code used by
// Electrum servers for failed lookups.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = 1
)

// Request is a single JSON-RPC 2.0 request as received on the wire, one per
// line. Parameters are kept raw and decoded per method.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is the reply to one request. The result field is always present
// on success, even when null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a server-initiated message for an active subscription. It
// carries no ID and expects no reply.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// Error is the error member of a failed response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Tip describes the chain tip for headers subscriptions.
type Tip struct {
	Height uint64 `json:"height"`
	Hex    string `json:"hex"`
}

// HistoryItem is one confirmed transaction in the history of a script hash.
type HistoryItem struct {
	TxHash string `json:"tx_hash"`
	Height uint64 `json:"height"`
}

// UnspentItem is one unspent output locked to a script hash.
type UnspentItem struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height uint64 `json:"height"`
	Value  int64  `json:"value"`
}

// Balance is the total value of the unspent outputs of a script hash. The
// index only tracks confirmed blocks, so the unconfirmed part is always zero.
type Balance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}
