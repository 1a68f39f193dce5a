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
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/electra-labs/electra/models/electra"
)

type Chain struct {
	TipFunc           func(ctx context.Context) (electra.Cursor, error)
	BlockByHeightFunc func(ctx context.Context, height uint64) (*electra.Block, error)
	BlockByHashFunc   func(ctx context.Context, hash chainhash.Hash) (*electra.Block, error)
}

func BaselineChain(t *testing.T) *Chain {
	t.Helper()

	c := Chain{
		TipFunc: func(context.Context) (electra.Cursor, error) {
			return GenericCursor(0), nil
		},
		BlockByHeightFunc: func(context.Context, uint64) (*electra.Block, error) {
			return GenericBlock(0), nil
		},
		BlockByHashFunc: func(context.Context, chainhash.Hash) (*electra.Block, error) {
			return GenericBlock(0), nil
		},
	}

	return &c
}

func (c *Chain) Tip(ctx context.Context) (electra.Cursor, error) {
	return c.TipFunc(ctx)
}

func (c *Chain) BlockByHeight(ctx context.Context, height uint64) (*electra.Block, error) {
	return c.BlockByHeightFunc(ctx, height)
}

func (c *Chain) BlockByHash(ctx context.Context, hash chainhash.Hash) (*electra.Block, error) {
	return c.BlockByHashFunc(ctx, hash)
}
