package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/electra-labs/electra/models/electra"
)

// EncodeKey encodes a database key from a prefix and a number of key
// segments. Heights are encoded big-endian so that keys of one prefix sort by
// height in iteration order.
func EncodeKey(prefix uint8, segments ...interface{}) []byte {
	key := []byte{prefix}
	var val []byte
	for _, segment := range segments {
		switch s := segment.(type) {
		case uint64:
			val = make([]byte, 8)
			binary.BigEndian.PutUint64(val, s)
		case uint32:
			val = make([]byte, 4)
			binary.BigEndian.PutUint32(val, s)
		case chainhash.Hash:
			val = make([]byte, chainhash.HashSize)
			copy(val, s[:])
		case electra.ScriptHash:
			val = make([]byte, len(s))
			copy(val, s[:])
		case electra.Outpoint:
			val = make([]byte, chainhash.HashSize+4)
			copy(val, s.TxID[:])
			binary.BigEndian.PutUint32(val[chainhash.HashSize:], s.Index)
		default:
			panic(fmt.Sprintf("unknown type (%T)", segment))
		}
		key = append(key, val...)
	}

	return key
}
