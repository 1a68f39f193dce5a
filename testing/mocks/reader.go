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

package mocks

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/electra-labs/electra/models/electra"
)

type Reader struct {
	FirstFunc                 func() (uint64, error)
	CursorFunc                func() (electra.Cursor, error)
	HeaderFunc                func(height uint64) (*electra.Header, error)
	HeightForBlockFunc        func(hash chainhash.Hash) (uint64, error)
	TransactionFunc           func(txID chainhash.Hash) (*electra.Transaction, error)
	HeightForTransactionFunc  func(txID chainhash.Hash) (uint64, error)
	TransactionsForHeightFunc func(height uint64) ([]chainhash.Hash, error)
	HistoryFunc               func(script electra.ScriptHash) ([]electra.TxRef, error)
	UnspentsFunc              func(script electra.ScriptHash) ([]electra.Unspent, error)
	BalanceFunc               func(script electra.ScriptHash) (int64, error)
	ForgetFunc                func(txIDs ...chainhash.Hash)
}

func BaselineReader(t *testing.T) *Reader {
	t.Helper()

	block := GenericBlock(0)

	r := Reader{
		FirstFunc: func() (uint64, error) {
			return GenericHeight, nil
		},
		CursorFunc: func() (electra.Cursor, error) {
			return GenericCursor(0), nil
		},
		HeaderFunc: func(uint64) (*electra.Header, error) {
			header := block.Header
			return &header, nil
		},
		HeightForBlockFunc: func(chainhash.Hash) (uint64, error) {
			return GenericHeight, nil
		},
		TransactionFunc: func(chainhash.Hash) (*electra.Transaction, error) {
			transaction := block.Transactions[0]
			return &transaction, nil
		},
		HeightForTransactionFunc: func(chainhash.Hash) (uint64, error) {
			return GenericHeight, nil
		},
		TransactionsForHeightFunc: func(uint64) ([]chainhash.Hash, error) {
			return []chainhash.Hash{block.Transactions[0].ID}, nil
		},
		HistoryFunc: func(electra.ScriptHash) ([]electra.TxRef, error) {
			return []electra.TxRef{{TxID: block.Transactions[0].ID, Height: GenericHeight}}, nil
		},
		UnspentsFunc: func(electra.ScriptHash) ([]electra.Unspent, error) {
			unspent := electra.Unspent{
				Outpoint: electra.Outpoint{TxID: block.Transactions[0].ID, Index: 0},
				Script:   GenericScriptHash(0),
				Value:    5000,
				Height:   GenericHeight,
			}
			return []electra.Unspent{unspent}, nil
		},
		BalanceFunc: func(electra.ScriptHash) (int64, error) {
			return 5000, nil
		},
		ForgetFunc: func(...chainhash.Hash) {},
	}

	return &r
}

func (r *Reader) First() (uint64, error) {
	return r.FirstFunc()
}

func (r *Reader) Cursor() (electra.Cursor, error) {
	return r.CursorFunc()
}

func (r *Reader) Header(height uint64) (*electra.Header, error) {
	return r.HeaderFunc(height)
}

func (r *Reader) HeightForBlock(hash chainhash.Hash) (uint64, error) {
	return r.HeightForBlockFunc(hash)
}

func (r *Reader) Transaction(txID chainhash.Hash) (*electra.Transaction, error) {
	return r.TransactionFunc(txID)
}

func (r *Reader) HeightForTransaction(txID chainhash.Hash) (uint64, error) {
	return r.HeightForTransactionFunc(txID)
}

func (r *Reader) TransactionsForHeight(height uint64) ([]chainhash.Hash, error) {
	return r.TransactionsForHeightFunc(height)
}

func (r *Reader) History(script electra.ScriptHash) ([]electra.TxRef, error) {
	return r.HistoryFunc(script)
}

func (r *Reader) Unspents(script electra.ScriptHash) ([]electra.Unspent, error) {
	return r.UnspentsFunc(script)
}

func (r *Reader) Balance(script electra.ScriptHash) (int64, error) {
	return r.BalanceFunc(script)
}

func (r *Reader) Forget(txIDs ...chainhash.Hash) {
	r.ForgetFunc(txIDs...)
}
