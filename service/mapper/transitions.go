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

package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/pubsub"
)

// TransitionFunc is a function that is applied onto the state machine's
// state.
type TransitionFunc func(*State) error

// Transitions is what applies transitions to the state of an FSM.
type Transitions struct {
	cfg    Config
	log    zerolog.Logger
	chain  electra.Chain
	read   electra.Reader
	write  electra.Writer
	broker *pubsub.Broker
}

// NewTransitions returns a Transitions component using the given dependencies
// and using the given options.
func NewTransitions(log zerolog.Logger, chain electra.Chain, read electra.Reader, write electra.Writer, broker *pubsub.Broker, options ...func(*Config)) *Transitions {

	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	t := Transitions{
		log:    log.With().Str("component", "mapper_transitions").Logger(),
		cfg:    cfg,
		chain:  chain,
		read:   read,
		write:  write,
		broker: broker,
	}

	return &t
}

// InitializeIndex loads the sync cursor from the index, if one exists, and
// determines the height at which indexing proceeds.
func (t *Transitions) InitializeIndex(s *State) error {
	if s.status != StatusInitialize {
		return fmt.Errorf("invalid status for initializing index (%s)", s.status)
	}

	cursor, err := t.read.Cursor()
	if errors.Is(err, electra.ErrNotFound) {
		// Empty index; indexing starts from the configured height.
		t.log.Info().Uint64("start_height", t.cfg.StartHeight).Msg("index empty, starting fresh")
		s.height = t.cfg.StartHeight
		s.status = StatusIdle
		return nil
	}
	if err != nil {
		// This includes a failed cursor integrity check, which is fatal.
		return fmt.Errorf("could not read cursor: %w", err)
	}

	t.log.Info().
		Uint64("height", cursor.Height).
		Hex("block", cursor.Hash[:]).
		Msg("resuming from indexed cursor")

	s.height = cursor.Height + 1
	s.status = StatusIdle

	return nil
}

// WatchChain polls the upstream node for its current tip and decides whether
// there are blocks to forward to, a reorganization to handle, or nothing to
// do yet.
func (t *Transitions) WatchChain(s *State) error {
	if s.status != StatusIdle {
		return fmt.Errorf("invalid status for watching chain (%s)", s.status)
	}

	tip, err := t.chain.Tip(context.Background())
	if err != nil {
		return fmt.Errorf("could not get chain tip: %w", err)
	}
	s.tip = electra.Header{Height: tip.Height, Hash: tip.Hash}

	if tip.Height >= s.height {
		s.status = StatusForward
		return nil
	}

	// The tip is at or below our cursor; make sure the chain we indexed is
	// still the one the node is on.
	cursor, err := t.read.Cursor()
	if err == nil && (tip.Height < cursor.Height || (tip.Height == cursor.Height && tip.Hash != cursor.Hash)) {
		s.status = StatusReorg
		return nil
	}
	if err != nil && !errors.Is(err, electra.ErrNotFound) {
		return fmt.Errorf("could not read cursor: %w", err)
	}

	t.log.Debug().Uint64("tip", tip.Height).Uint64("next", s.height).Msg("waiting for new blocks")
	time.Sleep(t.cfg.WaitInterval)

	return nil
}

// ForwardIndex retrieves the block at the next height from the chain and
// applies it to the index.
func (t *Transitions) ForwardIndex(s *State) error {
	if s.status != StatusForward {
		return fmt.Errorf("invalid status for forwarding index (%s)", s.status)
	}

	log := t.log.With().Uint64("height", s.height).Logger()

	block, err := t.chain.BlockByHeight(context.Background(), s.height)
	if errors.Is(err, electra.ErrNotFound) {
		// The block disappeared between seeing the tip and fetching it, so
		// the chain must have switched branches underneath us.
		s.status = StatusReorg
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not get block: %w", err)
	}

	err = t.write.Apply(block)
	if errors.Is(err, electra.ErrOutOfOrder) || errors.Is(err, electra.ErrConflict) {
		log.Warn().
			Hex("block", block.Header.Hash[:]).
			Hex("parent", block.Header.Parent[:]).
			Msg("block does not extend indexed chain")
		s.status = StatusReorg
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not apply block: %w", err)
	}

	t.publish(block)

	log.Info().
		Hex("block", block.Header.Hash[:]).
		Int("transactions", len(block.Transactions)).
		Msg("block data indexed")

	s.height++

	if t.cfg.EndHeight != 0 && s.height > t.cfg.EndHeight {
		s.status = StatusHalted
		return nil
	}
	if s.height > s.tip.Height {
		s.status = StatusIdle
	}

	return nil
}

// DetectReorg checks whether the indexed cursor still lies on the chain the
// upstream node considers canonical.
func (t *Transitions) DetectReorg(s *State) error {
	if s.status != StatusReorg {
		return fmt.Errorf("invalid status for detecting reorg (%s)", s.status)
	}

	cursor, err := t.read.Cursor()
	if errors.Is(err, electra.ErrNotFound) {
		// Nothing indexed, so there is nothing to diverge from.
		s.height = t.cfg.StartHeight
		s.status = StatusIdle
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read cursor: %w", err)
	}

	block, err := t.chain.BlockByHeight(context.Background(), cursor.Height)
	if errors.Is(err, electra.ErrNotFound) {
		// The chain no longer reaches our height at all.
		s.status = StatusRollback
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not get block: %w", err)
	}

	if block.Header.Hash == cursor.Hash {
		// The cursor is canonical after all; resume forward indexing.
		s.height = cursor.Height + 1
		s.status = StatusIdle
		return nil
	}

	t.log.Warn().
		Uint64("height", cursor.Height).
		Hex("indexed", cursor.Hash[:]).
		Hex("canonical", block.Header.Hash[:]).
		Msg("chain reorganization detected")

	s.status = StatusRollback

	return nil
}

// RollbackBlocks retracts the block at the cursor from the index. It handles
// one block per invocation and rechecks the upstream chain in between, so a
// reorganization that deepens while we roll back is handled as well.
func (t *Transitions) RollbackBlocks(s *State) error {
	if s.status != StatusRollback {
		return fmt.Errorf("invalid status for rolling back blocks (%s)", s.status)
	}

	cursor, err := t.read.Cursor()
	if errors.Is(err, electra.ErrNotFound) {
		// We rolled back past the first indexed block; start over.
		s.height = t.cfg.StartHeight
		s.status = StatusIdle
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read cursor: %w", err)
	}

	canonical, err := t.chain.BlockByHeight(context.Background(), cursor.Height)
	if err != nil && !errors.Is(err, electra.ErrNotFound) {
		return fmt.Errorf("could not get block: %w", err)
	}
	if err == nil && canonical.Header.Hash == cursor.Hash {
		// We are back on the canonical chain; resume from here.
		t.log.Info().Uint64("height", cursor.Height).Msg("rollback reached common ancestor")
		s.height = cursor.Height + 1
		s.status = StatusIdle
		return nil
	}

	block, err := t.rebuild(cursor)
	if err != nil {
		return fmt.Errorf("could not rebuild block from index: %w", err)
	}

	// Determine affected scripts before the retraction removes the block's
	// transactions from the index.
	scripts := t.touched(block)

	err = t.write.Retract(block)
	if err != nil {
		return fmt.Errorf("could not retract block: %w", err)
	}

	// Rebuilding the block went through the reader and warmed its cache with
	// the very transactions the retraction just deleted.
	txIDs := make([]chainhash.Hash, 0, len(block.Transactions))
	for _, transaction := range block.Transactions {
		txIDs = append(txIDs, transaction.ID)
	}
	t.read.Forget(txIDs...)

	if t.broker != nil {
		for _, script := range scripts {
			t.broker.Publish(pubsub.TopicScript(script), script)
		}
		parent, err := t.read.Header(cursor.Height - 1)
		if err == nil {
			t.broker.Publish(pubsub.TopicBlocks, parent)
		}
	}

	t.log.Info().
		Uint64("height", cursor.Height).
		Hex("block", cursor.Hash[:]).
		Msg("block data retracted")

	return nil
}

// HaltIndexing ends a bounded indexing run.
func (t *Transitions) HaltIndexing(s *State) error {
	if s.status != StatusHalted {
		return fmt.Errorf("invalid status for halting indexing (%s)", s.status)
	}

	t.log.Info().Uint64("height", s.height).Msg("indexing complete")

	return electra.ErrFinished
}

// rebuild reconstructs the full block at the cursor from the index, so that
// it can be retracted without depending on the upstream node still serving
// the stale branch.
func (t *Transitions) rebuild(cursor electra.Cursor) (*electra.Block, error) {

	header, err := t.read.Header(cursor.Height)
	if err != nil {
		return nil, fmt.Errorf("could not get header: %w", err)
	}

	txIDs, err := t.read.TransactionsForHeight(cursor.Height)
	if err != nil {
		return nil, fmt.Errorf("could not get transactions for height: %w", err)
	}

	transactions := make([]electra.Transaction, 0, len(txIDs))
	for _, txID := range txIDs {
		transaction, err := t.read.Transaction(txID)
		if err != nil {
			return nil, fmt.Errorf("could not get transaction (tx: %x): %w", txID, err)
		}
		transactions = append(transactions, *transaction)
	}

	block := electra.Block{
		Header:       *header,
		Transactions: transactions,
	}

	return &block, nil
}

// publish notifies subscribers of the new tip and of every script touched by
// the block.
func (t *Transitions) publish(block *electra.Block) {
	if t.broker == nil {
		return
	}

	header := block.Header
	t.broker.Publish(pubsub.TopicBlocks, &header)

	for _, script := range t.touched(block) {
		t.broker.Publish(pubsub.TopicScript(script), script)
	}
}

// touched returns the script hashes funded or spent by the given block.
// Scripts spent by an input are resolved through the indexed previous
// transaction, falling back to the block itself for intra-block spends.
func (t *Transitions) touched(block *electra.Block) []electra.ScriptHash {

	local := make(map[chainhash.Hash]*electra.Transaction, len(block.Transactions))
	for i := range block.Transactions {
		transaction := &block.Transactions[i]
		local[transaction.ID] = transaction
	}

	seen := make(map[electra.ScriptHash]struct{})
	for _, transaction := range block.Transactions {
		for _, output := range transaction.Outputs {
			seen[electra.HashScript(output.Script)] = struct{}{}
		}
		for _, input := range transaction.Inputs {
			if input.Coinbase {
				continue
			}
			prev, ok := local[input.PrevTx]
			if !ok {
				var err error
				prev, err = t.read.Transaction(input.PrevTx)
				if err != nil {
					t.log.Warn().Hex("tx", input.PrevTx[:]).Err(err).Msg("could not resolve spent transaction")
					continue
				}
			}
			if int(input.PrevIndex) >= len(prev.Outputs) {
				continue
			}
			seen[electra.HashScript(prev.Outputs[input.PrevIndex].Script)] = struct{}{}
		}
	}

	scripts := make([]electra.ScriptHash, 0, len(seen))
	for script := range seen {
		scripts = append(scripts, script)
	}

	return scripts
}
