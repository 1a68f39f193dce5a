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

package index_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-labs/electra/codec/zbor"
	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/index"
	"github.com/electra-labs/electra/service/storage"
	"github.com/electra-labs/electra/testing/helpers"
	"github.com/electra-labs/electra/testing/mocks"
)

func TestReader(t *testing.T) {
	db := helpers.InMemoryDB(t)
	defer db.Close()

	lib := storage.New(zbor.NewCodec())
	write := index.NewWriter(db, lib)
	read, err := index.NewReader(db, lib)
	require.NoError(t, err)

	blocks := mocks.GenericBlocks(3)
	for _, block := range blocks {
		require.NoError(t, write.Apply(block))
	}

	t.Run("header round trip", func(t *testing.T) {
		header, err := read.Header(blocks[1].Header.Height)
		require.NoError(t, err)
		assert.Equal(t, blocks[1].Header, *header)

		_, err = read.Header(blocks[2].Header.Height + 1)
		assert.ErrorIs(t, err, electra.ErrNotFound)
	})

	t.Run("block hash resolves to height", func(t *testing.T) {
		height, err := read.HeightForBlock(blocks[2].Header.Hash)
		require.NoError(t, err)
		assert.Equal(t, blocks[2].Header.Height, height)

		_, err = read.HeightForBlock(mocks.GenericHash("unknown"))
		assert.ErrorIs(t, err, electra.ErrNotFound)
	})

	t.Run("transaction round trip", func(t *testing.T) {
		want := blocks[1].Transactions[1]

		got, err := read.Transaction(want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *got)

		// A second read may be served from the cache and has to be identical.
		again, err := read.Transaction(want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *again)

		_, err = read.Transaction(mocks.GenericHash("unknown"))
		assert.ErrorIs(t, err, electra.ErrNotFound)
	})

	t.Run("transaction resolves to confirmation height", func(t *testing.T) {
		height, err := read.HeightForTransaction(mocks.GenericHash("spend-2"))
		require.NoError(t, err)
		assert.Equal(t, blocks[2].Header.Height, height)

		_, err = read.HeightForTransaction(mocks.GenericHash("unknown"))
		assert.ErrorIs(t, err, electra.ErrNotFound)
	})

	t.Run("height lists transactions in block order", func(t *testing.T) {
		txIDs, err := read.TransactionsForHeight(blocks[1].Header.Height)
		require.NoError(t, err)

		require.Len(t, txIDs, 2)
		assert.Equal(t, mocks.GenericHash("coinbase-1"), txIDs[0])
		assert.Equal(t, mocks.GenericHash("spend-1"), txIDs[1])
	})

	t.Run("unknown script has empty history and no balance", func(t *testing.T) {
		unknown := electra.HashScript([]byte(`unknown`))

		history, err := read.History(unknown)
		require.NoError(t, err)
		assert.Empty(t, history)

		unspents, err := read.Unspents(unknown)
		require.NoError(t, err)
		assert.Empty(t, unspents)

		balance, err := read.Balance(unknown)
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("unspents carry outpoint, value and height", func(t *testing.T) {
		unspents, err := read.Unspents(mocks.GenericScriptHash(3))
		require.NoError(t, err)
		require.Len(t, unspents, 2)

		total := int64(0)
		for _, unspent := range unspents {
			assert.Equal(t, mocks.GenericScriptHash(3), unspent.Script)
			total += unspent.Value
		}
		assert.Equal(t, int64(6500), total)
	})
}

func TestReader_Forget(t *testing.T) {
	db := helpers.InMemoryDB(t)
	defer db.Close()

	lib := storage.New(zbor.NewCodec())
	write := index.NewWriter(db, lib)
	read, err := index.NewReader(db, lib)
	require.NoError(t, err)

	blocks := mocks.GenericBlocks(2)
	for _, block := range blocks {
		require.NoError(t, write.Apply(block))
	}

	// Warm the cache with the tip block's transactions, the way a rollback
	// does when it rebuilds the block before retracting it.
	txIDs := make([]chainhash.Hash, 0, len(blocks[1].Transactions))
	for _, transaction := range blocks[1].Transactions {
		txIDs = append(txIDs, transaction.ID)
		_, err := read.Transaction(transaction.ID)
		require.NoError(t, err)
	}

	require.NoError(t, write.Retract(blocks[1]))
	read.Forget(txIDs...)

	t.Run("retracted transactions are gone", func(t *testing.T) {
		for _, txID := range txIDs {
			_, err := read.Transaction(txID)
			assert.ErrorIs(t, err, electra.ErrNotFound)
		}
	})

	t.Run("remaining transactions are still served", func(t *testing.T) {
		kept, err := read.Transaction(blocks[0].Transactions[0].ID)
		require.NoError(t, err)
		assert.Equal(t, blocks[0].Transactions[0], *kept)
	})
}
