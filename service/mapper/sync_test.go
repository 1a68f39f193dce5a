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

package mapper_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-labs/electra/codec/zbor"
	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/index"
	"github.com/electra-labs/electra/service/mapper"
	"github.com/electra-labs/electra/service/storage"
	"github.com/electra-labs/electra/testing/helpers"
	"github.com/electra-labs/electra/testing/mocks"
)

// TestSync_Reorg drives the state machine against a real index through a
// chain switch: the node first serves A, B and C, then switches to a longer
// branch B', C' and D' on top of A. The index has to end up on the new
// branch with the cursor at D' and nothing left over from B or C.
func TestSync_Reorg(t *testing.T) {

	db := helpers.InMemoryDB(t)
	defer db.Close()

	lib := storage.New(zbor.NewCodec())
	write := index.NewWriter(db, lib)
	read, err := index.NewReader(db, lib)
	require.NoError(t, err)

	stale := mocks.GenericBlocks(3)
	forked := forkBlocks(t, stale[0], 3)

	canonical := make(map[uint64]*electra.Block)
	for _, block := range stale {
		canonical[block.Header.Height] = block
	}
	switched := make(map[uint64]*electra.Block)
	for _, block := range forked {
		switched[block.Header.Height] = block
	}

	// The first tip the node reports is C; every later poll reports D' and
	// the blocks of the new branch.
	flipped := false
	tips := 0
	chain := mocks.BaselineChain(t)
	chain.TipFunc = func(context.Context) (electra.Cursor, error) {
		tips++
		if tips > 1 {
			flipped = true
		}
		tip := stale[2]
		if flipped {
			tip = forked[3]
		}
		return electra.Cursor{Height: tip.Header.Height, Hash: tip.Header.Hash}, nil
	}
	chain.BlockByHeightFunc = func(_ context.Context, height uint64) (*electra.Block, error) {
		view := canonical
		if flipped {
			view = switched
		}
		block, ok := view[height]
		if !ok {
			return nil, electra.ErrNotFound
		}
		return block, nil
	}

	transitions := mapper.NewTransitions(mocks.NoopLogger, chain, read, write, nil,
		mapper.WithStartHeight(stale[0].Header.Height),
		mapper.WithEndHeight(forked[3].Header.Height),
		mapper.WithWaitInterval(time.Millisecond),
	)
	fsm := mapper.NewFSM(mapper.EmptyState(),
		mapper.WithTransition(mapper.StatusInitialize, transitions.InitializeIndex),
		mapper.WithTransition(mapper.StatusIdle, transitions.WatchChain),
		mapper.WithTransition(mapper.StatusForward, transitions.ForwardIndex),
		mapper.WithTransition(mapper.StatusReorg, transitions.DetectReorg),
		mapper.WithTransition(mapper.StatusRollback, transitions.RollbackBlocks),
		mapper.WithTransition(mapper.StatusHalted, transitions.HaltIndexing),
	)

	err = fsm.Run()
	require.NoError(t, err)

	t.Run("cursor ends on the new branch tip", func(t *testing.T) {
		cursor, err := read.Cursor()
		require.NoError(t, err)
		assert.Equal(t, forked[3].Header.Height, cursor.Height)
		assert.Equal(t, forked[3].Header.Hash, cursor.Hash)
	})

	t.Run("headers follow the new branch", func(t *testing.T) {
		for _, block := range forked {
			header, err := read.Header(block.Header.Height)
			require.NoError(t, err)
			assert.Equal(t, block.Header, *header)

			height, err := read.HeightForBlock(block.Header.Hash)
			require.NoError(t, err)
			assert.Equal(t, block.Header.Height, height)
		}
	})

	t.Run("no residual entries from the stale branch", func(t *testing.T) {
		for _, block := range stale[1:] {
			_, err := read.HeightForBlock(block.Header.Hash)
			assert.ErrorIs(t, err, electra.ErrNotFound)

			for _, transaction := range block.Transactions {
				_, err := read.Transaction(transaction.ID)
				assert.ErrorIs(t, err, electra.ErrNotFound)

				_, err = read.HeightForTransaction(transaction.ID)
				assert.ErrorIs(t, err, electra.ErrNotFound)
			}
		}

		staleIDs := make(map[string]struct{})
		for _, block := range stale[1:] {
			for _, transaction := range block.Transactions {
				staleIDs[transaction.ID.String()] = struct{}{}
			}
		}
		for i := 0; i < 4; i++ {
			history, err := read.History(mocks.GenericScriptHash(i))
			require.NoError(t, err)
			for _, ref := range history {
				_, ok := staleIDs[ref.TxID.String()]
				assert.False(t, ok, "stale transaction %s in history of script %d", ref.TxID, i)
			}
		}
	})

	t.Run("retraction restored the spent output", func(t *testing.T) {
		// The stale branch spent the first coinbase output of A; rolling the
		// branch back has to return it to the unspent set.
		balance, err := read.Balance(mocks.GenericScriptHash(0))
		require.NoError(t, err)
		assert.Equal(t, int64(5000), balance)
	})
}

// forkBlocks builds a competing branch of the given length on top of the
// given block, with hashes and transactions disjoint from the generic chain.
func forkBlocks(t *testing.T, ancestor *electra.Block, count int) []*electra.Block {
	t.Helper()

	blocks := []*electra.Block{ancestor}
	parent := ancestor.Header.Hash
	for i := 1; i <= count; i++ {

		coinbase := electra.Transaction{
			ID: mocks.GenericHash(fmt.Sprintf("fork-coinbase-%d", i)),
			Inputs: []electra.Input{
				{PrevIndex: math.MaxUint32, Coinbase: true},
			},
			Outputs: []electra.Output{
				{Script: mocks.GenericScript(i % 4), Value: 6000},
			},
			Raw: []byte(fmt.Sprintf("raw-fork-coinbase-%d", i)),
		}

		hash := mocks.GenericHash(fmt.Sprintf("fork-block-%d", i))
		block := electra.Block{
			Header: electra.Header{
				Height: ancestor.Header.Height + uint64(i),
				Hash:   hash,
				Parent: parent,
				Time:   ancestor.Header.Time.Add(time.Duration(i) * 10 * time.Minute),
				Raw:    []byte(fmt.Sprintf("raw-fork-header-%d", i)),
			},
			Transactions: []electra.Transaction{coinbase},
		}

		blocks = append(blocks, &block)
		parent = hash
	}

	return blocks
}
