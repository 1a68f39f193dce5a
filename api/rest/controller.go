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

// Package rest exposes the index over a plain HTTP API, which is easier to
// poke at with curl than the Electrum protocol.
package rest

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/labstack/echo/v4"

	"github.com/electra-labs/electra/models/electra"
)

type Controller struct {
	index electra.Reader
}

func NewController(index electra.Reader) (*Controller, error) {
	c := Controller{
		index: index,
	}
	return &c, nil
}

// Register mounts the controller's routes on the given echo instance.
func (c *Controller) Register(server *echo.Echo) {
	server.GET("/status", c.GetStatus)
	server.GET("/headers/:height", c.GetHeader)
	server.GET("/blocks/:hash", c.GetBlock)
	server.GET("/transactions/:txid", c.GetTransaction)
	server.GET("/scripthashes/:hash/balance", c.GetBalance)
	server.GET("/scripthashes/:hash/history", c.GetHistory)
	server.GET("/scripthashes/:hash/unspents", c.GetUnspents)
}

func (c *Controller) GetStatus(ctx echo.Context) error {

	first, err := c.index.First()
	if errors.Is(err, electra.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, errors.New("index is empty"))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	cursor, err := c.index.Cursor()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	res := StatusResponse{
		First:  first,
		Height: cursor.Height,
		Hash:   cursor.Hash.String(),
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *Controller) GetHeader(ctx echo.Context) error {

	height, err := strconv.ParseUint(ctx.Param("height"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	header, err := c.index.Header(height)
	if errors.Is(err, electra.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ctx.JSON(http.StatusOK, headerResponse(header))
}

func (c *Controller) GetBlock(ctx echo.Context) error {

	hash, err := chainhash.NewHashFromStr(ctx.Param("hash"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	height, err := c.index.HeightForBlock(*hash)
	if errors.Is(err, electra.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	header, err := c.index.Header(height)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return ctx.JSON(http.StatusOK, headerResponse(header))
}

func (c *Controller) GetTransaction(ctx echo.Context) error {

	txID, err := chainhash.NewHashFromStr(ctx.Param("txid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	transaction, err := c.index.Transaction(*txID)
	if errors.Is(err, electra.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	height, err := c.index.HeightForTransaction(*txID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	res := TransactionResponse{
		TxID:    transaction.ID.String(),
		Height:  height,
		Inputs:  make([]InputResponse, 0, len(transaction.Inputs)),
		Outputs: make([]OutputResponse, 0, len(transaction.Outputs)),
		Raw:     hex.EncodeToString(transaction.Raw),
	}
	for _, input := range transaction.Inputs {
		item := InputResponse{
			PrevIndex: input.PrevIndex,
			Coinbase:  input.Coinbase,
		}
		if !input.Coinbase {
			item.PrevTx = input.PrevTx.String()
		}
		res.Inputs = append(res.Inputs, item)
	}
	for _, output := range transaction.Outputs {
		item := OutputResponse{
			Script: hex.EncodeToString(output.Script),
			Value:  output.Value,
		}
		res.Outputs = append(res.Outputs, item)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *Controller) GetBalance(ctx echo.Context) error {

	script, err := electra.ParseScriptHash(ctx.Param("hash"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	confirmed, err := c.index.Balance(script)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	res := BalanceResponse{
		ScriptHash: script.String(),
		Confirmed:  confirmed,
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *Controller) GetHistory(ctx echo.Context) error {

	script, err := electra.ParseScriptHash(ctx.Param("hash"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	history, err := c.index.History(script)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	res := HistoryResponse{
		ScriptHash:   script.String(),
		Transactions: make([]HistoryItem, 0, len(history)),
	}
	for _, ref := range history {
		item := HistoryItem{
			TxID:   ref.TxID.String(),
			Height: ref.Height,
		}
		res.Transactions = append(res.Transactions, item)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *Controller) GetUnspents(ctx echo.Context) error {

	script, err := electra.ParseScriptHash(ctx.Param("hash"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	unspents, err := c.index.Unspents(script)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	res := UnspentsResponse{
		ScriptHash: script.String(),
		Unspents:   make([]UnspentItem, 0, len(unspents)),
	}
	for _, unspent := range unspents {
		item := UnspentItem{
			TxID:   unspent.Outpoint.TxID.String(),
			Index:  unspent.Outpoint.Index,
			Height: unspent.Height,
			Value:  unspent.Value,
		}
		res.Unspents = append(res.Unspents, item)
	}

	return ctx.JSON(http.StatusOK, res)
}

func headerResponse(header *electra.Header) HeaderResponse {
	return HeaderResponse{
		Height: header.Height,
		Hash:   header.Hash.String(),
		Parent: header.Parent.String(),
		Time:   header.Time.Unix(),
		Raw:    hex.EncodeToString(header.Raw),
	}
}
