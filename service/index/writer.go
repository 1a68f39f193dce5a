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

package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dgraph-io/badger/v2"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/storage"
)

// Writer implements the `electra.Writer` interface on top of a Badger
// database. Every call to Apply or Retract commits all index mutations for
// one block together with the sync cursor in a single Badger transaction, so
// that readers observe either the full pre-block or the full post-block
// state. A mutex enforces the single-writer model even if the writer is
// accidentally shared.
type Writer struct {
	mutex sync.Mutex
	db    *badger.DB
	lib   *storage.Library
}

// NewWriter creates a new index writer on the given database, using the
// given storage library for its operations.
func NewWriter(db *badger.DB, lib *storage.Library) *Writer {

	w := Writer{
		db:  db,
		lib: lib,
	}

	return &w
}

// Apply extends the index with the given block's data and advances the sync
// cursor to it. Applying the block at the cursor again is a no-op, so that
// re-delivery after a crash is safe. A parent mismatch fails with
// ErrOutOfOrder and a duplicate height with a different hash fails with
// ErrConflict; neither commits anything.
func (w *Writer) Apply(block *electra.Block) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.db.Update(func(tx *badger.Txn) error {

		header := block.Header

		var cursor electra.Cursor
		err := w.lib.RetrieveCursor(&cursor)(tx)
		empty := errors.Is(err, electra.ErrNotFound)
		if err != nil && !empty {
			return fmt.Errorf("could not retrieve cursor: %w", err)
		}

		switch {
		case empty:
			// The first block of an empty index starts the indexed range.
			err = w.lib.SaveFirst(header.Height)(tx)
			if err != nil {
				return fmt.Errorf("could not save first height: %w", err)
			}

		case header.Hash == cursor.Hash:
			return nil

		case header.Height <= cursor.Height:
			var indexed electra.Header
			err = w.lib.RetrieveHeader(header.Height, &indexed)(tx)
			if err != nil {
				return fmt.Errorf("could not retrieve indexed header (height: %d): %w", header.Height, err)
			}
			if indexed.Hash == header.Hash {
				return nil
			}
			return fmt.Errorf("duplicate height with diverging hash (height: %d, indexed: %s, applied: %s): %w",
				header.Height, indexed.Hash, header.Hash, electra.ErrConflict)

		case header.Parent != cursor.Hash || header.Height != cursor.Height+1:
			return fmt.Errorf("parent does not match cursor (height: %d, parent: %s, cursor: %s): %w",
				header.Height, header.Parent, cursor.Hash, electra.ErrOutOfOrder)
		}

		err = w.applyBlock(tx, block)
		if err != nil {
			return err
		}

		err = w.lib.SaveCursor(electra.Cursor{Height: header.Height, Hash: header.Hash})(tx)
		if err != nil {
			return fmt.Errorf("could not save cursor: %w", err)
		}

		return nil
	})
}

func (w *Writer) applyBlock(tx *badger.Txn, block *electra.Block) error {

	height := block.Header.Height

	// Each script hash touched by the block collects its history entries, so
	// they can be written as one record that a later retraction can remove
	// without touching older history.
	touched := make(map[electra.ScriptHash][]electra.TxRef)
	seen := make(map[electra.ScriptHash]map[chainhash.Hash]struct{})
	touch := func(script electra.ScriptHash, txID chainhash.Hash) {
		dedup, ok := seen[script]
		if !ok {
			dedup = make(map[chainhash.Hash]struct{})
			seen[script] = dedup
		}
		_, ok = dedup[txID]
		if ok {
			return
		}
		dedup[txID] = struct{}{}
		touched[script] = append(touched[script], electra.TxRef{TxID: txID, Height: height})
	}

	txIDs := make([]chainhash.Hash, 0, len(block.Transactions))
	for i := range block.Transactions {
		transaction := block.Transactions[i]
		txIDs = append(txIDs, transaction.ID)

		err := w.lib.SaveTransaction(&transaction)(tx)
		if err != nil {
			return fmt.Errorf("could not save transaction (tx: %s): %w", transaction.ID, err)
		}
		err = w.lib.IndexHeightForTransaction(transaction.ID, height)(tx)
		if err != nil {
			return fmt.Errorf("could not index height for transaction (tx: %s): %w", transaction.ID, err)
		}

		for idx := range transaction.Outputs {
			output := transaction.Outputs[idx]
			script := electra.HashScript(output.Script)
			unspent := electra.Unspent{
				Outpoint: electra.Outpoint{TxID: transaction.ID, Index: uint32(idx)},
				Script:   script,
				Value:    output.Value,
				Height:   height,
			}
			err = w.lib.SaveUnspent(unspent)(tx)
			if err != nil {
				return fmt.Errorf("could not save unspent output (tx: %s, index: %d): %w", transaction.ID, idx, err)
			}
			touch(script, transaction.ID)
		}

		for _, input := range transaction.Inputs {
			if input.Coinbase {
				continue
			}
			spent, err := w.spendOutput(tx, input, transaction.ID, height)
			if err != nil {
				return err
			}
			touch(spent.Unspent.Script, transaction.ID)
		}
	}

	for script, refs := range touched {
		err := w.lib.SaveHistory(script, height, refs)(tx)
		if err != nil {
			return fmt.Errorf("could not save history (script: %s): %w", script, err)
		}
	}

	ops := storage.Combine(
		w.lib.IndexTransactionsForHeight(height, txIDs),
		w.lib.SaveHeader(height, &block.Header),
		w.lib.IndexHeightForBlock(block.Header.Hash, height),
	)
	err := ops(tx)
	if err != nil {
		return fmt.Errorf("could not save block data (height: %d): %w", height, err)
	}

	return nil
}

// spendOutput moves the output referenced by the input from the unspent set
// into the spent records. The referenced transaction must already be part of
// the index; with the no-gap invariant holding, a missing one means the index
// is damaged.
func (w *Writer) spendOutput(tx *badger.Txn, input electra.Input, spender chainhash.Hash, height uint64) (electra.Spent, error) {

	var prev electra.Transaction
	err := w.lib.RetrieveTransaction(input.PrevTx, &prev)(tx)
	if err != nil {
		return electra.Spent{}, fmt.Errorf("could not resolve spent output (tx: %s): %w", input.PrevTx, err)
	}
	if input.PrevIndex >= uint32(len(prev.Outputs)) {
		return electra.Spent{}, fmt.Errorf("spent output index out of range (tx: %s, index: %d): %w",
			input.PrevTx, input.PrevIndex, electra.ErrCorrupt)
	}
	var prevHeight uint64
	err = w.lib.LookupHeightForTransaction(input.PrevTx, &prevHeight)(tx)
	if err != nil {
		return electra.Spent{}, fmt.Errorf("could not look up height of spent output (tx: %s): %w", input.PrevTx, err)
	}

	output := prev.Outputs[input.PrevIndex]
	outpoint := electra.Outpoint{TxID: input.PrevTx, Index: input.PrevIndex}
	spent := electra.Spent{
		Unspent: electra.Unspent{
			Outpoint: outpoint,
			Script:   electra.HashScript(output.Script),
			Value:    output.Value,
			Height:   prevHeight,
		},
		Spender:     spender,
		SpendHeight: height,
	}

	ops := storage.Combine(
		w.lib.RemoveUnspent(spent.Unspent.Script, outpoint),
		w.lib.SaveSpent(spent),
	)
	err = ops(tx)
	if err != nil {
		return electra.Spent{}, fmt.Errorf("could not record spend (outpoint: %s:%d): %w", outpoint.TxID, outpoint.Index, err)
	}

	return spent, nil
}

// Retract reverses the index effects of the given block exactly. Only the
// block at the sync cursor can be retracted; the cursor rewinds to the parent
// in the same transaction.
func (w *Writer) Retract(block *electra.Block) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.db.Update(func(tx *badger.Txn) error {

		header := block.Header

		var cursor electra.Cursor
		err := w.lib.RetrieveCursor(&cursor)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve cursor: %w", err)
		}
		if cursor.Hash != header.Hash {
			return fmt.Errorf("retracted block is not the index tip (height: %d, hash: %s, cursor: %s): %w",
				header.Height, header.Hash, cursor.Hash, electra.ErrOutOfOrder)
		}

		height := header.Height
		touched := make(map[electra.ScriptHash]struct{})

		// Transactions are unwound in reverse order, so that outputs spent
		// within the same block are restored before their funding transaction
		// is removed.
		for i := len(block.Transactions) - 1; i >= 0; i-- {
			transaction := block.Transactions[i]

			for _, input := range transaction.Inputs {
				if input.Coinbase {
					continue
				}
				outpoint := electra.Outpoint{TxID: input.PrevTx, Index: input.PrevIndex}
				var spent electra.Spent
				err = w.lib.RetrieveSpent(outpoint, &spent)(tx)
				if err != nil {
					return fmt.Errorf("could not retrieve spend record (outpoint: %s:%d): %w",
						outpoint.TxID, outpoint.Index, err)
				}
				ops := storage.Combine(
					w.lib.SaveUnspent(spent.Unspent),
					w.lib.RemoveSpent(outpoint),
				)
				err = ops(tx)
				if err != nil {
					return fmt.Errorf("could not restore spent output (outpoint: %s:%d): %w",
						outpoint.TxID, outpoint.Index, err)
				}
				touched[spent.Unspent.Script] = struct{}{}
			}

			for idx := range transaction.Outputs {
				script := electra.HashScript(transaction.Outputs[idx].Script)
				outpoint := electra.Outpoint{TxID: transaction.ID, Index: uint32(idx)}
				err = w.lib.RemoveUnspent(script, outpoint)(tx)
				if err != nil {
					return fmt.Errorf("could not remove unspent output (outpoint: %s:%d): %w",
						outpoint.TxID, outpoint.Index, err)
				}
				touched[script] = struct{}{}
			}

			ops := storage.Combine(
				w.lib.RemoveTransaction(transaction.ID),
				w.lib.UnindexHeightForTransaction(transaction.ID),
			)
			err = ops(tx)
			if err != nil {
				return fmt.Errorf("could not remove transaction (tx: %s): %w", transaction.ID, err)
			}
		}

		for script := range touched {
			err = w.lib.RemoveHistory(script, height)(tx)
			if err != nil {
				return fmt.Errorf("could not remove history (script: %s): %w", script, err)
			}
		}

		ops := storage.Combine(
			w.lib.UnindexTransactionsForHeight(height),
			w.lib.RemoveHeader(height),
			w.lib.UnindexHeightForBlock(header.Hash),
		)
		err = ops(tx)
		if err != nil {
			return fmt.Errorf("could not remove block data (height: %d): %w", height, err)
		}

		// Rewind the cursor; retracting the first indexed block leaves the
		// index empty, exactly as it was before the block was applied.
		var first uint64
		err = w.lib.RetrieveFirst(&first)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve first height: %w", err)
		}
		if height == first {
			ops = storage.Combine(
				w.lib.RemoveCursor(),
				w.lib.RemoveFirst(),
			)
			err = ops(tx)
			if err != nil {
				return fmt.Errorf("could not clear cursor: %w", err)
			}
			return nil
		}

		err = w.lib.SaveCursor(electra.Cursor{Height: height - 1, Hash: header.Parent})(tx)
		if err != nil {
			return fmt.Errorf("could not rewind cursor: %w", err)
		}

		return nil
	})
}

// Close implements the `electra.Writer` interface. The writer does not own
// the database handle, so there is nothing to release.
func (w *Writer) Close() error {
	return nil
}
