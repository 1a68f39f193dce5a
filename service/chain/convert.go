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
	"bytes"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/electra-labs/electra/models/electra"
)

// convertBlock maps a wire block into the domain model. Going through
// btcutil gives us cached transaction hashes, which would otherwise be
// recomputed for every transaction.
func convertBlock(msg *wire.MsgBlock, height uint64) *electra.Block {

	wrapped := btcutil.NewBlock(msg)

	var raw bytes.Buffer
	_ = msg.Header.Serialize(&raw)

	block := electra.Block{
		Header: electra.Header{
			Height: height,
			Hash:   msg.BlockHash(),
			Parent: msg.Header.PrevBlock,
			Time:   msg.Header.Timestamp,
			Raw:    raw.Bytes(),
		},
		Transactions: make([]electra.Transaction, 0, len(msg.Transactions)),
	}

	for _, tx := range wrapped.Transactions() {
		block.Transactions = append(block.Transactions, convertTransaction(tx))
	}

	return &block
}

func convertTransaction(tx *btcutil.Tx) electra.Transaction {

	msg := tx.MsgTx()

	var raw bytes.Buffer
	_ = msg.Serialize(&raw)

	transaction := electra.Transaction{
		ID:      *tx.Hash(),
		Inputs:  make([]electra.Input, 0, len(msg.TxIn)),
		Outputs: make([]electra.Output, 0, len(msg.TxOut)),
		Raw:     raw.Bytes(),
	}

	for _, txIn := range msg.TxIn {
		prev := txIn.PreviousOutPoint
		input := electra.Input{
			PrevTx:    prev.Hash,
			PrevIndex: prev.Index,
			Coinbase:  prev.Hash == (chainhash.Hash{}) && prev.Index == math.MaxUint32,
		}
		transaction.Inputs = append(transaction.Inputs, input)
	}

	for _, txOut := range msg.TxOut {
		script := make([]byte, len(txOut.PkScript))
		copy(script, txOut.PkScript)
		output := electra.Output{
			Script: script,
			Value:  txOut.Value,
		}
		transaction.Outputs = append(transaction.Outputs, output)
	}

	return transaction
}
