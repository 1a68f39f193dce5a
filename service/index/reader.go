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
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/ristretto"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/storage"
)

// Reader implements the `electra.Reader` interface on top of a Badger
// database. Every lookup runs in its own read transaction, which Badger
// serves from a snapshot, so concurrent block commits never become visible
// half-way through a query. Transactions are immutable for a given ID, so
// they are served through a memory cache.
type Reader struct {
	db    *badger.DB
	lib   *storage.Library
	cache *ristretto.Cache
}

// NewReader creates a new index reader, using the given database and storage
// library as backends.
func NewReader(db *badger.DB, lib *storage.Library, options ...Option) (*Reader, error) {

	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	var cache *ristretto.Cache
	if cfg.CacheSize > 0 {
		var err error
		cache, err = ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.CacheSize / 1024 * 10,
			MaxCost:     cfg.CacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("could not initialize cache: %w", err)
		}
	}

	r := Reader{
		db:    db,
		lib:   lib,
		cache: cache,
	}

	return &r, nil
}

// First returns the height of the first indexed block.
func (r *Reader) First() (uint64, error) {
	var height uint64
	err := r.db.View(r.lib.RetrieveFirst(&height))
	return height, err
}

// Cursor returns the sync cursor of the last fully committed block.
func (r *Reader) Cursor() (electra.Cursor, error) {
	var cursor electra.Cursor
	err := r.db.View(r.lib.RetrieveCursor(&cursor))
	return cursor, err
}

// Header returns the header of the indexed block at the given height.
func (r *Reader) Header(height uint64) (*electra.Header, error) {
	var header electra.Header
	err := r.db.View(r.lib.RetrieveHeader(height, &header))
	if err != nil {
		return nil, err
	}
	return &header, nil
}

// HeightForBlock returns the height of the indexed block with the given hash.
func (r *Reader) HeightForBlock(hash chainhash.Hash) (uint64, error) {
	var height uint64
	err := r.db.View(r.lib.LookupHeightForBlock(hash, &height))
	return height, err
}

// Transaction returns the indexed transaction with the given identifier.
func (r *Reader) Transaction(txID chainhash.Hash) (*electra.Transaction, error) {

	if r.cache != nil {
		cached, ok := r.cache.Get(txID[:])
		if ok {
			return cached.(*electra.Transaction), nil
		}
	}

	var transaction electra.Transaction
	err := r.db.View(r.lib.RetrieveTransaction(txID, &transaction))
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		cost := int64(len(transaction.Inputs)*40 + 1)
		for _, output := range transaction.Outputs {
			cost += int64(len(output.Script) + 16)
		}
		r.cache.Set(txID[:], &transaction, cost)
	}

	return &transaction, nil
}

// Forget removes the given transactions from the memory cache. Retraction
// deletes them from the database, so a cached copy would keep serving a
// branch that is no longer part of the index.
func (r *Reader) Forget(txIDs ...chainhash.Hash) {
	if r.cache == nil {
		return
	}

	// Sets are buffered, so a concurrent read could still enqueue one of the
	// forgotten transactions; flush the buffers before deleting.
	r.cache.Wait()
	for _, txID := range txIDs {
		r.cache.Del(txID[:])
	}
}

// HeightForTransaction returns the height of the block containing the
// transaction with the given identifier.
func (r *Reader) HeightForTransaction(txID chainhash.Hash) (uint64, error) {
	var height uint64
	err := r.db.View(r.lib.LookupHeightForTransaction(txID, &height))
	return height, err
}

// TransactionsForHeight returns the ordered transaction identifiers of the
// indexed block at the given height.
func (r *Reader) TransactionsForHeight(height uint64) ([]chainhash.Hash, error) {
	var txIDs []chainhash.Hash
	err := r.db.View(r.lib.LookupTransactionsForHeight(height, &txIDs))
	return txIDs, err
}

// History returns the confirmed history of the given script hash in ascending
// height order. A script hash the index has never seen yields an empty
// history, not an error.
func (r *Reader) History(script electra.ScriptHash) ([]electra.TxRef, error) {
	refs := make([]electra.TxRef, 0)
	err := r.db.View(r.lib.RetrieveHistory(script, &refs))
	return refs, err
}

// Unspents returns all unspent outputs locked to the given script hash.
func (r *Reader) Unspents(script electra.ScriptHash) ([]electra.Unspent, error) {
	unspents := make([]electra.Unspent, 0)
	err := r.db.View(r.lib.RetrieveUnspents(script, &unspents))
	return unspents, err
}

// Balance returns the total value of unspent outputs locked to the given
// script hash, in satoshis.
func (r *Reader) Balance(script electra.ScriptHash) (int64, error) {
	unspents, err := r.Unspents(script)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, unspent := range unspents {
		balance += unspent.Value
	}
	return balance, nil
}
