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

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
)

// RPC is the part of the Bitcoin node's JSON-RPC surface that the node client
// needs. It is implemented by `rpcclient.Client` from btcd.
type RPC interface {
	GetBestBlockHash() (*chainhash.Hash, error)
	GetBlockHash(height int64) (*chainhash.Hash, error)
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
	GetBlockHeaderVerbose(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
}

// Node implements the `electra.Chain` interface against a Bitcoin full node's
// JSON-RPC interface. It is strictly read-only. Transient failures, including
// authentication rejections while the node rotates its cookie credentials,
// are retried with exponential backoff before surfacing as ErrUnavailable;
// unknown heights and hashes surface as ErrNotFound immediately.
type Node struct {
	log zerolog.Logger
	rpc RPC
	cfg Config
}

// FromRPC creates a new node client on top of the given RPC connection.
func FromRPC(log zerolog.Logger, rpc RPC, options ...Option) *Node {

	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	n := Node{
		log: log.With().Str("component", "chain_node").Logger(),
		rpc: rpc,
		cfg: cfg,
	}

	return &n
}

// Tip returns the height and hash of the node's current best block.
func (n *Node) Tip(ctx context.Context) (electra.Cursor, error) {

	var cursor electra.Cursor
	err := n.withRetry(ctx, "tip", func() error {
		hash, err := n.rpc.GetBestBlockHash()
		if err != nil {
			return err
		}
		header, err := n.rpc.GetBlockHeaderVerbose(hash)
		if err != nil {
			return err
		}
		cursor = electra.Cursor{Height: uint64(header.Height), Hash: *hash}
		return nil
	})
	if err != nil {
		return electra.Cursor{}, err
	}

	return cursor, nil
}

// BlockByHeight returns the block at the given height of the node's current
// canonical chain, with all of its transactions.
func (n *Node) BlockByHeight(ctx context.Context, height uint64) (*electra.Block, error) {

	var block *electra.Block
	err := n.withRetry(ctx, "block_by_height", func() error {
		hash, err := n.rpc.GetBlockHash(int64(height))
		if err != nil {
			return err
		}
		msg, err := n.rpc.GetBlock(hash)
		if err != nil {
			return err
		}
		block = convertBlock(msg, height)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

// BlockByHash returns the block with the given hash, with all of its
// transactions.
func (n *Node) BlockByHash(ctx context.Context, hash chainhash.Hash) (*electra.Block, error) {

	var block *electra.Block
	err := n.withRetry(ctx, "block_by_hash", func() error {
		header, err := n.rpc.GetBlockHeaderVerbose(&hash)
		if err != nil {
			return err
		}
		msg, err := n.rpc.GetBlock(&hash)
		if err != nil {
			return err
		}
		block = convertBlock(msg, uint64(header.Height))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

// withRetry executes the given call, retrying transient failures with
// exponential backoff within the configured bounds. Failures that map to
// ErrNotFound abort immediately.
func (n *Node) withRetry(ctx context.Context, op string, call func() error) error {

	wait := n.cfg.WaitMin
	for attempt := uint(0); ; attempt++ {

		err := call()
		if err == nil {
			return nil
		}
		if notFound(err) {
			return fmt.Errorf("entity unknown to node (op: %s): %w", op, electra.ErrNotFound)
		}
		if attempt >= n.cfg.RetryLimit {
			return fmt.Errorf("node calls exhausted retries (op: %s, attempts: %d, last: %s): %w",
				op, attempt+1, err, electra.ErrUnavailable)
		}

		n.log.Warn().
			Str("op", op).
			Uint("attempt", attempt+1).
			Dur("wait", wait).
			Err(err).
			Msg("node call failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("node call canceled (op: %s): %w", op, ctx.Err())
		case <-time.After(wait):
		}

		wait = wait * 2
		if wait > n.cfg.WaitMax {
			wait = n.cfg.WaitMax
		}
	}
}

// notFound decides whether an RPC failure refers to an entity the node does
// not know, as opposed to a transient condition worth retrying. Auth
// failures are deliberately not in this list: the node regenerates its cookie
// file on restart, so rejected credentials can recover within the retry
// window.
func notFound(err error) bool {
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Code {
	// ErrRPCNoTxInfo and ErrRPCInvalidAddressOrKey share ErrRPCBlockNotFound's
	// code (-5), so listing them again would be a duplicate case.
	case btcjson.ErrRPCBlockNotFound, btcjson.ErrRPCInvalidParameter:
		return true
	default:
		return false
	}
}
