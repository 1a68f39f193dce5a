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

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dgraph-io/badger/v2"

	"github.com/electra-labs/electra/models/electra"
)

// SaveFirst is an operation that writes the height of the first indexed block.
func (l *Library) SaveFirst(height uint64) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixFirst), height)
}

// RetrieveFirst is an operation that retrieves the height of the first
// indexed block.
func (l *Library) RetrieveFirst(height *uint64) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixFirst), height)
}

// RemoveFirst is an operation that deletes the first indexed height, used
// when the first indexed block itself is retracted.
func (l *Library) RemoveFirst() func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixFirst))
}

// SaveCursor is an operation that writes the sync cursor. The encoded cursor
// is prefixed with a checksum of its payload, so that a damaged record is
// detected on load instead of silently resuming from bad state.
func (l *Library) SaveCursor(cursor electra.Cursor) func(*badger.Txn) error {
	payload, err := l.codec.Marshal(cursor)
	return func(tx *badger.Txn) error {
		if err != nil {
			return fmt.Errorf("could not encode cursor: %w", err)
		}
		val := make([]byte, 8+len(payload))
		binary.BigEndian.PutUint64(val, xxhash.Checksum64(payload))
		copy(val[8:], payload)
		err = tx.Set(EncodeKey(PrefixCursor), val)
		if err != nil {
			return fmt.Errorf("could not set cursor: %w", err)
		}
		return nil
	}
}

// RetrieveCursor is an operation that retrieves the sync cursor and verifies
// its checksum. A checksum mismatch fails with ErrCorrupt.
func (l *Library) RetrieveCursor(cursor *electra.Cursor) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(EncodeKey(PrefixCursor))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("could not get cursor: %w", electra.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("could not get cursor: %w", err)
		}
		err = item.Value(func(val []byte) error {
			if len(val) < 8 {
				return fmt.Errorf("cursor record truncated: %w", electra.ErrCorrupt)
			}
			if binary.BigEndian.Uint64(val) != xxhash.Checksum64(val[8:]) {
				return fmt.Errorf("cursor checksum mismatch: %w", electra.ErrCorrupt)
			}
			return l.codec.Unmarshal(val[8:], cursor)
		})
		if err != nil {
			return fmt.Errorf("could not decode cursor: %w", err)
		}
		return nil
	}
}

// RemoveCursor is an operation that deletes the sync cursor, used when the
// first indexed block itself is retracted.
func (l *Library) RemoveCursor() func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixCursor))
}

// SaveHeader is an operation that writes a block header at its height.
func (l *Library) SaveHeader(height uint64, header *electra.Header) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixHeader, height), header)
}

// RetrieveHeader is an operation that retrieves the header at the given
// height.
func (l *Library) RetrieveHeader(height uint64, header *electra.Header) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixHeader, height), header)
}

// RemoveHeader is an operation that deletes the header at the given height.
func (l *Library) RemoveHeader(height uint64) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixHeader, height))
}

// IndexHeightForBlock is an operation that indexes the height of a block hash.
func (l *Library) IndexHeightForBlock(hash chainhash.Hash, height uint64) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixHeightForBlock, hash), height)
}

// LookupHeightForBlock is an operation that retrieves the height of the block
// with the given hash.
func (l *Library) LookupHeightForBlock(hash chainhash.Hash, height *uint64) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixHeightForBlock, hash), height)
}

// UnindexHeightForBlock is an operation that deletes the height entry of the
// block with the given hash.
func (l *Library) UnindexHeightForBlock(hash chainhash.Hash) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixHeightForBlock, hash))
}

// SaveTransaction is an operation that writes the given transaction.
func (l *Library) SaveTransaction(transaction *electra.Transaction) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixTransaction, transaction.ID), transaction)
}

// RetrieveTransaction is an operation that retrieves the transaction with the
// given identifier.
func (l *Library) RetrieveTransaction(txID chainhash.Hash, transaction *electra.Transaction) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixTransaction, txID), transaction)
}

// RemoveTransaction is an operation that deletes the transaction with the
// given identifier.
func (l *Library) RemoveTransaction(txID chainhash.Hash) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixTransaction, txID))
}

// IndexHeightForTransaction is an operation that indexes the height of a
// transaction identifier.
func (l *Library) IndexHeightForTransaction(txID chainhash.Hash, height uint64) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixHeightForTransaction, txID), height)
}

// LookupHeightForTransaction is an operation that retrieves the height of the
// transaction with the given identifier.
func (l *Library) LookupHeightForTransaction(txID chainhash.Hash, height *uint64) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixHeightForTransaction, txID), height)
}

// UnindexHeightForTransaction is an operation that deletes the height entry
// of the transaction with the given identifier.
func (l *Library) UnindexHeightForTransaction(txID chainhash.Hash) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixHeightForTransaction, txID))
}

// IndexTransactionsForHeight is an operation that indexes the ordered list of
// transaction identifiers within the block at the given height.
func (l *Library) IndexTransactionsForHeight(height uint64, txIDs []chainhash.Hash) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixTransactionsForHeight, height), txIDs)
}

// LookupTransactionsForHeight is an operation that retrieves the ordered list
// of transaction identifiers at the given height.
func (l *Library) LookupTransactionsForHeight(height uint64, txIDs *[]chainhash.Hash) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixTransactionsForHeight, height), txIDs)
}

// UnindexTransactionsForHeight is an operation that deletes the transaction
// list at the given height.
func (l *Library) UnindexTransactionsForHeight(height uint64) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixTransactionsForHeight, height))
}

// SaveHistory is an operation that writes the history entries of one script
// hash for one block. Keeping one record per script hash and height makes the
// entries of a retracted block removable without touching earlier history.
func (l *Library) SaveHistory(script electra.ScriptHash, height uint64, refs []electra.TxRef) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixHistory, script, height), refs)
}

// RemoveHistory is an operation that deletes the history entries of one
// script hash for one block.
func (l *Library) RemoveHistory(script electra.ScriptHash, height uint64) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixHistory, script, height))
}

// RetrieveHistory is an operation that retrieves the full history of a script
// hash in ascending height order. A script hash without entries yields an
// empty history.
func (l *Library) RetrieveHistory(script electra.ScriptHash, refs *[]electra.TxRef) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		prefix := EncodeKey(PrefixHistory, script)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var batch []electra.TxRef
			err := it.Item().Value(func(val []byte) error {
				return l.codec.Unmarshal(val, &batch)
			})
			if err != nil {
				return fmt.Errorf("could not unmarshal history entries: %w", err)
			}
			*refs = append(*refs, batch...)
		}

		return nil
	}
}

// SaveUnspent is an operation that adds an output to the unspent set of its
// script hash.
func (l *Library) SaveUnspent(unspent electra.Unspent) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixUnspent, unspent.Script, unspent.Outpoint), unspent)
}

// RemoveUnspent is an operation that removes an output from the unspent set
// of its script hash.
func (l *Library) RemoveUnspent(script electra.ScriptHash, outpoint electra.Outpoint) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixUnspent, script, outpoint))
}

// RetrieveUnspents is an operation that retrieves all unspent outputs locked
// to the given script hash.
func (l *Library) RetrieveUnspents(script electra.ScriptHash, unspents *[]electra.Unspent) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		prefix := EncodeKey(PrefixUnspent, script)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// The value we decode into has to be initialized inside the loop
			// body, so that every unspent output gets its own memory.
			var unspent electra.Unspent
			err := it.Item().Value(func(val []byte) error {
				return l.codec.Unmarshal(val, &unspent)
			})
			if err != nil {
				return fmt.Errorf("could not unmarshal unspent output: %w", err)
			}
			*unspents = append(*unspents, unspent)
		}

		return nil
	}
}

// SaveSpent is an operation that records the consumption of an output, so
// that the output can be restored if the spending block is retracted.
func (l *Library) SaveSpent(spent electra.Spent) func(*badger.Txn) error {
	return l.save(EncodeKey(PrefixSpent, spent.Unspent.Outpoint), spent)
}

// RetrieveSpent is an operation that retrieves the spend record of the given
// outpoint.
func (l *Library) RetrieveSpent(outpoint electra.Outpoint, spent *electra.Spent) func(*badger.Txn) error {
	return l.retrieve(EncodeKey(PrefixSpent, outpoint), spent)
}

// RemoveSpent is an operation that deletes the spend record of the given
// outpoint.
func (l *Library) RemoveSpent(outpoint electra.Outpoint) func(*badger.Txn) error {
	return l.remove(EncodeKey(PrefixSpent, outpoint))
}
