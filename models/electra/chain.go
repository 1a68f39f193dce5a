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
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Chain represents the upstream full node as a read-only source of block
// data. Implementations retry transient failures internally and only return
// ErrUnavailable once retries are exhausted; ErrNotFound is returned
// immediately.
type Chain interface {
	Tip(ctx context.Context) (Cursor, error)
	BlockByHeight(ctx context.Context, height uint64) (*Block, error)
	BlockByHash(ctx context.Context, hash chainhash.Hash) (*Block, error)
}
