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
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Reader represents something that can read from the script hash index. All
// reads are served from the state as of the last committed sync cursor.
type Reader interface {
	First() (uint64, error)
	Cursor() (Cursor, error)

	Header(height uint64) (*Header, error)
	HeightForBlock(hash chainhash.Hash) (uint64, error)

	Transaction(txID chainhash.Hash) (*Transaction, error)
	HeightForTransaction(txID chainhash.Hash) (uint64, error)
	TransactionsForHeight(height uint64) ([]chainhash.Hash, error)

	History(script ScriptHash) ([]TxRef, error)
	Unspents(script ScriptHash) ([]Unspent, error)
	Balance(script ScriptHash) (int64, error)

	// Forget drops the given transactions from any memory cache the reader
	// keeps. Transactions are only immutable on the canonical chain, so the
	// mapper calls this for every transaction of a retracted block.
	Forget(txIDs ...chainhash.Hash)
}
