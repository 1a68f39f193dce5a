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

package rest

// StatusResponse describes the indexed range of the chain.
type StatusResponse struct {
	First  uint64 `json:"first"`
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// HeaderResponse is an indexed block header.
type HeaderResponse struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
	Parent string `json:"parent"`
	Time   int64  `json:"time"`
	Raw    string `json:"raw"`
}

// TransactionResponse is an indexed transaction in parsed form.
type TransactionResponse struct {
	TxID    string           `json:"txid"`
	Height  uint64           `json:"height"`
	Inputs  []InputResponse  `json:"inputs"`
	Outputs []OutputResponse `json:"outputs"`
	Raw     string           `json:"raw"`
}

// InputResponse is a single transaction input.
type InputResponse struct {
	PrevTx    string `json:"prev_tx,omitempty"`
	PrevIndex uint32 `json:"prev_index"`
	Coinbase  bool   `json:"coinbase,omitempty"`
}

// OutputResponse is a single transaction output.
type OutputResponse struct {
	Script string `json:"script"`
	Value  int64  `json:"value"`
}

// BalanceResponse is the confirmed balance of a script hash.
type BalanceResponse struct {
	ScriptHash string `json:"scripthash"`
	Confirmed  int64  `json:"confirmed"`
}

// HistoryResponse is the confirmed history of a script hash.
type HistoryResponse struct {
	ScriptHash   string        `json:"scripthash"`
	Transactions []HistoryItem `json:"transactions"`
}

// HistoryItem is one transaction in a script hash history.
type HistoryItem struct {
	TxID   string `json:"txid"`
	Height uint64 `json:"height"`
}

// UnspentsResponse lists the unspent outputs of a script hash.
type UnspentsResponse struct {
	ScriptHash string        `json:"scripthash"`
	Unspents   []UnspentItem `json:"unspents"`
}

// UnspentItem is one unspent output.
type UnspentItem struct {
	TxID   string `json:"txid"`
	Index  uint32 `json:"index"`
	Height uint64 `json:"height"`
	Value  int64  `json:"value"`
}
