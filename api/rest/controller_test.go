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

package rest_test

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electra-labs/electra/api/rest"
	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/testing/mocks"
)

func TestController_GetStatus(t *testing.T) {

	t.Run("nominal case", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/status")
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

		cursor := mocks.GenericCursor(0)
		assert.Equal(t, mocks.GenericHeight, res.First)
		assert.Equal(t, cursor.Height, res.Height)
		assert.Equal(t, cursor.Hash.String(), res.Hash)
	})

	t.Run("empty index", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.FirstFunc = func() (uint64, error) {
			return 0, electra.ErrNotFound
		}

		rec := serve(t, index, "/status")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestController_GetHeader(t *testing.T) {

	t.Run("nominal case", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/headers/42")
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.HeaderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

		header := mocks.GenericBlock(0).Header
		assert.Equal(t, header.Height, res.Height)
		assert.Equal(t, header.Hash.String(), res.Hash)
		assert.Equal(t, header.Parent.String(), res.Parent)
		assert.Equal(t, header.Time.Unix(), res.Time)
		assert.Equal(t, hex.EncodeToString(header.Raw), res.Raw)
	})

	t.Run("malformed height", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/headers/foo")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown height", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.HeaderFunc = func(uint64) (*electra.Header, error) {
			return nil, electra.ErrNotFound
		}

		rec := serve(t, index, "/headers/42")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestController_GetBlock(t *testing.T) {

	t.Run("nominal case", func(t *testing.T) {
		t.Parallel()

		header := mocks.GenericBlock(0).Header
		rec := serve(t, mocks.BaselineReader(t), "/blocks/"+header.Hash.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.HeaderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, header.Hash.String(), res.Hash)
	})

	t.Run("malformed hash", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/blocks/zzzz")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown hash", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.HeightForBlockFunc = func(chainhash.Hash) (uint64, error) {
			return 0, electra.ErrNotFound
		}

		rec := serve(t, index, "/blocks/"+mocks.GenericHash("unknown").String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestController_GetTransaction(t *testing.T) {

	t.Run("nominal case", func(t *testing.T) {
		t.Parallel()

		transaction := mocks.GenericBlock(0).Transactions[0]
		rec := serve(t, mocks.BaselineReader(t), "/transactions/"+transaction.ID.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.TransactionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

		assert.Equal(t, transaction.ID.String(), res.TxID)
		assert.Equal(t, mocks.GenericHeight, res.Height)
		assert.Equal(t, hex.EncodeToString(transaction.Raw), res.Raw)
		require.Len(t, res.Inputs, 1)
		assert.True(t, res.Inputs[0].Coinbase)
		assert.Empty(t, res.Inputs[0].PrevTx)
		require.Len(t, res.Outputs, 2)
		assert.Equal(t, hex.EncodeToString(transaction.Outputs[0].Script), res.Outputs[0].Script)
		assert.Equal(t, transaction.Outputs[0].Value, res.Outputs[0].Value)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.TransactionFunc = func(chainhash.Hash) (*electra.Transaction, error) {
			return nil, electra.ErrNotFound
		}

		rec := serve(t, index, "/transactions/"+mocks.GenericHash("unknown").String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestController_ScriptHashes(t *testing.T) {

	script := mocks.GenericScriptHash(0)

	t.Run("balance", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/scripthashes/"+script.String()+"/balance")
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.BalanceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, script.String(), res.ScriptHash)
		assert.Equal(t, int64(5000), res.Confirmed)
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/scripthashes/"+script.String()+"/history")
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Transactions, 1)
		assert.Equal(t, mocks.GenericBlock(0).Transactions[0].ID.String(), res.Transactions[0].TxID)
		assert.Equal(t, mocks.GenericHeight, res.Transactions[0].Height)
	})

	t.Run("unspents", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/scripthashes/"+script.String()+"/unspents")
		require.Equal(t, http.StatusOK, rec.Code)

		var res rest.UnspentsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Unspents, 1)
		assert.Equal(t, int64(5000), res.Unspents[0].Value)
		assert.Equal(t, mocks.GenericHeight, res.Unspents[0].Height)
	})

	t.Run("empty history is a JSON array", func(t *testing.T) {
		t.Parallel()

		index := mocks.BaselineReader(t)
		index.HistoryFunc = func(electra.ScriptHash) ([]electra.TxRef, error) {
			return nil, nil
		}

		rec := serve(t, index, "/scripthashes/"+script.String()+"/history")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"transactions":[]`)
	})

	t.Run("malformed script hash", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, mocks.BaselineReader(t), "/scripthashes/zzzz/balance")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// serve runs one GET request against a controller backed by the given index.
func serve(t *testing.T, index electra.Reader, target string) *httptest.ResponseRecorder {
	t.Helper()

	ctrl, err := rest.NewController(index)
	require.NoError(t, err)

	server := echo.New()
	ctrl.Register(server)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	return rec
}
