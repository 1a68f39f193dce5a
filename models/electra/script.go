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
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ScriptHash is the fingerprint under which a locking script is indexed. It
// follows the Electrum convention of using the SHA256 digest of the raw
// script.
type ScriptHash [sha256.Size]byte

// HashScript computes the index fingerprint for the given locking script.
func HashScript(script []byte) ScriptHash {
	return sha256.Sum256(script)
}

// String implements the Stringer interface using the Electrum wire encoding,
// which reverses the digest bytes before hex-encoding them.
func (s ScriptHash) String() string {
	reversed := make([]byte, len(s))
	for i, b := range s {
		reversed[len(s)-1-i] = b
	}
	return hex.EncodeToString(reversed)
}

// ParseScriptHash decodes a script hash from its Electrum wire encoding.
func ParseScriptHash(text string) (ScriptHash, error) {
	var script ScriptHash
	data, err := hex.DecodeString(text)
	if err != nil {
		return ScriptHash{}, err
	}
	if len(data) != len(script) {
		return ScriptHash{}, ErrBadScriptHash
	}
	for i, b := range data {
		script[len(script)-1-i] = b
	}
	return script, nil
}

// TxRef is one entry in the history of a script hash, pointing at a
// transaction that funded or spent one of its outputs.
type TxRef struct {
	TxID   chainhash.Hash
	Height uint64
}

// Unspent is an output that is currently part of the UTXO set.
type Unspent struct {
	Outpoint Outpoint
	Script   ScriptHash
	Value    int64
	Height   uint64
}

// Spent records everything needed to restore an output to the UTXO set when
// the block of its spending transaction is retracted.
type Spent struct {
	Unspent     Unspent
	Spender     chainhash.Hash
	SpendHeight uint64
}
