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
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
)

// Global variables that can be used for testing. They are non-nil valid
// values for the types commonly needed to test components.
var (
	NoopLogger = zerolog.New(io.Discard)

	GenericError = errors.New("dummy error")

	GenericHeight = uint64(42)

	GenericBytes = []byte(`test`)
)

// GenericHash returns a deterministic hash derived from the given seed.
func GenericHash(seed string) chainhash.Hash {
	return chainhash.DoubleHashH([]byte(seed))
}

// GenericScript returns a deterministic locking script.
func GenericScript(index int) []byte {
	return []byte(fmt.Sprintf("script-%d", index))
}

// GenericScriptHash returns the index fingerprint of a deterministic locking
// script.
func GenericScriptHash(index int) electra.ScriptHash {
	return electra.HashScript(GenericScript(index))
}

// GenericBlocks returns a deterministic chain of linked blocks, starting at
// GenericHeight. Every block has a coinbase transaction paying two outputs,
// and every block except the first has a second transaction spending the
// first coinbase output of its parent, so the fixture exercises both funding
// and spending paths.
func GenericBlocks(count int) []*electra.Block {

	blocks := make([]*electra.Block, 0, count)
	parent := GenericHash("parent")
	for i := 0; i < count; i++ {

		height := GenericHeight + uint64(i)

		coinbase := electra.Transaction{
			ID: GenericHash(fmt.Sprintf("coinbase-%d", i)),
			Inputs: []electra.Input{
				{PrevIndex: math.MaxUint32, Coinbase: true},
			},
			Outputs: []electra.Output{
				{Script: GenericScript(i % 4), Value: 5000},
				{Script: GenericScript((i + 1) % 4), Value: 2500},
			},
			Raw: []byte(fmt.Sprintf("raw-coinbase-%d", i)),
		}

		transactions := []electra.Transaction{coinbase}
		if i > 0 {
			spend := electra.Transaction{
				ID: GenericHash(fmt.Sprintf("spend-%d", i)),
				Inputs: []electra.Input{
					{PrevTx: GenericHash(fmt.Sprintf("coinbase-%d", i-1)), PrevIndex: 0},
				},
				Outputs: []electra.Output{
					{Script: GenericScript((i + 2) % 4), Value: 4000},
				},
				Raw: []byte(fmt.Sprintf("raw-spend-%d", i)),
			}
			transactions = append(transactions, spend)
		}

		hash := GenericHash(fmt.Sprintf("block-%d", i))
		block := electra.Block{
			Header: electra.Header{
				Height: height,
				Hash:   hash,
				Parent: parent,
				Time:   time.Date(1972, 11, 12, 13, 14, 15, 0, time.UTC).Add(time.Duration(i) * 10 * time.Minute),
				Raw:    []byte(fmt.Sprintf("raw-header-%d", i)),
			},
			Transactions: transactions,
		}

		blocks = append(blocks, &block)
		parent = hash
	}

	return blocks
}

// GenericBlock returns the block at the given offset of the deterministic
// chain.
func GenericBlock(index int) *electra.Block {
	return GenericBlocks(index + 1)[index]
}

// GenericCursor returns the cursor pointing at the block at the given offset
// of the deterministic chain.
func GenericCursor(index int) electra.Cursor {
	block := GenericBlock(index)
	return electra.Cursor{
		Height: block.Header.Height,
		Hash:   block.Header.Hash,
	}
}
