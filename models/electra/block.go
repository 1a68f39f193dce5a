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

package electra

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Header holds the part of a block that the index needs to track chain
// membership. The parent hash of the block at height zero is the zero hash.
type Header struct {
	Height uint64
	Hash   chainhash.Hash
	Parent chainhash.Hash
	Time   time.Time
	Raw    []byte
}

// Block is a fully resolved block with the ordered list of its transactions.
type Block struct {
	Header       Header
	Transactions []Transaction
}

// Transaction is the subset of transaction data relevant for indexing. Inputs
// and outputs keep the order they have on the wire, as output indices are part
// of the outpoint identity.
type Transaction struct {
	ID      chainhash.Hash
	Inputs  []Input
	Outputs []Output
	Raw     []byte
}

// Input references the output it consumes. Coinbase inputs reference nothing
// and are flagged instead.
type Input struct {
	PrevTx    chainhash.Hash
	PrevIndex uint32
	Coinbase  bool
}

// Output carries the locking script and the amount in satoshis.
type Output struct {
	Script []byte
	Value  int64
}

// Outpoint identifies a transaction output by transaction ID and output index.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// Cursor records indexing progress as the height and hash of the last fully
// committed block. It is owned by the index writer; everyone else only reads
// it.
type Cursor struct {
	Height uint64
	Hash   chainhash.Hash
}
