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

package electrum

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/pubsub"
	"github.com/electra-labs/electra/testing/mocks"
)

func TestSession_Handle(t *testing.T) {

	t.Run("rejects unparseable requests", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle([]byte(`not json`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeParse, res.Error.Code)
	})

	t.Run("rejects requests without a method", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle([]byte(`{"jsonrpc":"2.0","id":1,"params":[]}`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeInvalidRequest, res.Error.Code)
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.made.up", `[]`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeMethodNotFound, res.Error.Code)
	})

	t.Run("server.version reports name and protocol", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "server.version", `["test client","1.4"]`))
		require.Nil(t, res.Error)
		assert.Equal(t, []string{DefaultConfig.ServerName, DefaultConfig.ProtocolVersion}, res.Result)
	})

	t.Run("server.banner serves the configured banner", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "server.banner", `[]`))
		require.Nil(t, res.Error)
		assert.Equal(t, DefaultConfig.Banner, res.Result)
	})

	t.Run("server.ping returns a null result", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "server.ping", `[]`))
		require.Nil(t, res.Error)
		assert.Nil(t, res.Result)
	})

	t.Run("headers subscription returns the current tip", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.headers.subscribe", `[]`))
		require.Nil(t, res.Error)

		block := mocks.GenericBlock(0)
		want := Tip{
			Height: block.Header.Height,
			Hex:    hex.EncodeToString(block.Header.Raw),
		}
		assert.Equal(t, want, res.Result)

		s.mutex.RLock()
		defer s.mutex.RUnlock()
		assert.True(t, s.headers)
	})

	t.Run("headers subscription fails on an empty index", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.CursorFunc = func() (electra.Cursor, error) {
			return electra.Cursor{}, electra.ErrNotFound
		}
		s := baselineSession(t, index)

		res := s.handle(request(t, "blockchain.headers.subscribe", `[]`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeServerError, res.Error.Code)
	})

	t.Run("block.header serves the raw header", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.block.header", fmt.Sprintf(`[%d]`, mocks.GenericHeight)))
		require.Nil(t, res.Error)
		assert.Equal(t, hex.EncodeToString(mocks.GenericBlock(0).Header.Raw), res.Result)
	})

	t.Run("block.header rejects checkpoint requests", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.block.header", fmt.Sprintf(`[%d,%d]`, mocks.GenericHeight, mocks.GenericHeight)))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeInvalidParams, res.Error.Code)
	})

	t.Run("block.header fails on unknown height", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.HeaderFunc = func(uint64) (*electra.Header, error) {
			return nil, electra.ErrNotFound
		}
		s := baselineSession(t, index)

		res := s.handle(request(t, "blockchain.block.header", `[999]`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeServerError, res.Error.Code)
	})

	t.Run("transaction.get serves the raw transaction", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		transaction := mocks.GenericBlock(0).Transactions[0]
		res := s.handle(request(t, "blockchain.transaction.get", fmt.Sprintf(`["%s"]`, transaction.ID)))
		require.Nil(t, res.Error)
		assert.Equal(t, hex.EncodeToString(transaction.Raw), res.Result)
	})

	t.Run("transaction.get rejects verbose requests", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		transaction := mocks.GenericBlock(0).Transactions[0]
		res := s.handle(request(t, "blockchain.transaction.get", fmt.Sprintf(`["%s",true]`, transaction.ID)))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeInvalidParams, res.Error.Code)
	})

	t.Run("transaction.get rejects malformed transaction IDs", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.transaction.get", `["zzzz"]`))
		require.NotNil(t, res.Error)
		assert.Equal(t, codeInvalidParams, res.Error.Code)
	})

	t.Run("get_balance reports the confirmed balance", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.scripthash.get_balance", scriptParams(0)))
		require.Nil(t, res.Error)
		assert.Equal(t, Balance{Confirmed: 5000, Unconfirmed: 0}, res.Result)
	})

	t.Run("get_history lists confirmed transactions", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.scripthash.get_history", scriptParams(0)))
		require.Nil(t, res.Error)

		transaction := mocks.GenericBlock(0).Transactions[0]
		want := []HistoryItem{{TxHash: transaction.ID.String(), Height: mocks.GenericHeight}}
		assert.Equal(t, want, res.Result)
	})

	t.Run("listunspent lists unspent outputs", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.scripthash.listunspent", scriptParams(0)))
		require.Nil(t, res.Error)

		transaction := mocks.GenericBlock(0).Transactions[0]
		want := []UnspentItem{{
			TxHash: transaction.ID.String(),
			TxPos:  0,
			Height: mocks.GenericHeight,
			Value:  5000,
		}}
		assert.Equal(t, want, res.Result)
	})

	t.Run("scripthash methods reject malformed script hashes", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		for _, method := range []string{
			"blockchain.scripthash.get_balance",
			"blockchain.scripthash.get_history",
			"blockchain.scripthash.listunspent",
			"blockchain.scripthash.subscribe",
			"blockchain.scripthash.unsubscribe",
		} {
			res := s.handle(request(t, method, `["zzzz"]`))
			require.NotNilf(t, res.Error, "method %s", method)
			assert.Equalf(t, codeInvalidParams, res.Error.Code, "method %s", method)
		}
	})

	t.Run("script subscription returns the current status", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.scripthash.subscribe", scriptParams(0)))
		require.Nil(t, res.Error)

		transaction := mocks.GenericBlock(0).Transactions[0]
		want := scriptStatus([]electra.TxRef{{TxID: transaction.ID, Height: mocks.GenericHeight}})
		require.NotNil(t, want)
		assert.Equal(t, *want, res.Result)

		s.mutex.RLock()
		defer s.mutex.RUnlock()
		assert.Contains(t, s.scripts, mocks.GenericScriptHash(0))
	})

	t.Run("subscription to a script without history has a null status", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.HistoryFunc = func(electra.ScriptHash) ([]electra.TxRef, error) {
			return nil, nil
		}
		s := baselineSession(t, index)

		res := s.handle(request(t, "blockchain.scripthash.subscribe", scriptParams(0)))
		require.Nil(t, res.Error)
		assert.Nil(t, res.Result)
	})

	t.Run("unsubscribe reports whether a subscription existed", func(t *testing.T) {
		t.Parallel()

		s := baselineSession(t, mocks.BaselineReader(t))

		res := s.handle(request(t, "blockchain.scripthash.subscribe", scriptParams(0)))
		require.Nil(t, res.Error)

		res = s.handle(request(t, "blockchain.scripthash.unsubscribe", scriptParams(0)))
		require.Nil(t, res.Error)
		assert.Equal(t, true, res.Result)

		res = s.handle(request(t, "blockchain.scripthash.unsubscribe", scriptParams(0)))
		require.Nil(t, res.Error)
		assert.Equal(t, false, res.Result)
	})
}

func TestSession_Run(t *testing.T) {

	broker := pubsub.NewBroker(mocks.NoopLogger)
	defer broker.Close()

	server, client := net.Pipe()
	defer client.Close()

	s := newSession(mocks.NoopLogger, DefaultConfig, mocks.BaselineReader(t), broker, server)
	go s.run()

	lines := bufio.NewScanner(client)

	// Plain request and response round trip.
	writeLine(t, client, request(t, "server.ping", `[]`))
	res := readLine(t, lines)
	assert.Nil(t, res.Error)

	// Tip notifications only flow after a headers subscription.
	writeLine(t, client, request(t, "blockchain.headers.subscribe", `[]`))
	res = readLine(t, lines)
	require.Nil(t, res.Error)

	header := mocks.GenericBlock(1).Header
	broker.Publish(pubsub.TopicBlocks, &header)

	notification := readLine(t, lines)
	assert.Equal(t, "blockchain.headers.subscribe", notification.Method)

	var tips []Tip
	require.NoError(t, json.Unmarshal(notification.Params, &tips))
	require.Len(t, tips, 1)
	assert.Equal(t, header.Height, tips[0].Height)
	assert.Equal(t, hex.EncodeToString(header.Raw), tips[0].Hex)

	// Script notifications carry the recomputed status.
	writeLine(t, client, request(t, "blockchain.scripthash.subscribe", scriptParams(0)))
	res = readLine(t, lines)
	require.Nil(t, res.Error)

	broker.Publish(pubsub.TopicScript(mocks.GenericScriptHash(0)), mocks.GenericScriptHash(0))

	notification = readLine(t, lines)
	assert.Equal(t, "blockchain.scripthash.subscribe", notification.Method)

	var params []interface{}
	require.NoError(t, json.Unmarshal(notification.Params, &params))
	require.Len(t, params, 2)
	assert.Equal(t, mocks.GenericScriptHash(0).String(), params[0])
	assert.NotNil(t, params[1])

	// Closing the connection ends the session.
	_ = client.Close()
}

func TestScriptStatus(t *testing.T) {

	assert.Nil(t, scriptStatus(nil))

	history := []electra.TxRef{
		{TxID: mocks.GenericHash("one"), Height: mocks.GenericHeight},
		{TxID: mocks.GenericHash("two"), Height: mocks.GenericHeight + 1},
	}

	status := scriptStatus(history)
	require.NotNil(t, status)
	assert.Len(t, *status, 64)

	again := scriptStatus(history)
	require.NotNil(t, again)
	assert.Equal(t, *status, *again)

	reversed := []electra.TxRef{history[1], history[0]}
	different := scriptStatus(reversed)
	require.NotNil(t, different)
	assert.NotEqual(t, *status, *different)
}

func baselineSession(t *testing.T, index electra.Reader) *Session {
	t.Helper()

	broker := pubsub.NewBroker(mocks.NoopLogger)
	t.Cleanup(broker.Close)

	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	return newSession(mocks.NoopLogger, DefaultConfig, index, broker, server)
}

func request(t *testing.T, method string, params string) []byte {
	t.Helper()

	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"%s","params":%s}`, method, params))
}

func scriptParams(index int) string {
	return fmt.Sprintf(`["%s"]`, mocks.GenericScriptHash(index))
}

type line struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	Params json.RawMessage `json:"params"`
}

func writeLine(t *testing.T, conn net.Conn, data []byte) {
	t.Helper()

	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := conn.Write(append(data, '\n'))
	require.NoError(t, err)
}

func readLine(t *testing.T, scanner *bufio.Scanner) line {
	t.Helper()

	require.True(t, scanner.Scan())

	var l line
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
	return l
}
