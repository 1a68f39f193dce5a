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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/pubsub"
)

// Session serves one client connection. Requests are processed sequentially
// in arrival order, while subscription notifications are interleaved onto the
// same connection from the broker subscription.
type Session struct {
	log    zerolog.Logger
	cfg    Config
	index  electra.Reader
	broker *pubsub.Broker
	conn   net.Conn
	sub    *pubsub.Subscription

	mutex   sync.RWMutex
	scripts map[electra.ScriptHash]struct{}
	headers bool

	write sync.Mutex
	wg    sync.WaitGroup
}

func newSession(log zerolog.Logger, cfg Config, index electra.Reader, broker *pubsub.Broker, conn net.Conn) *Session {

	s := Session{
		log:     log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		cfg:     cfg,
		index:   index,
		broker:  broker,
		conn:    conn,
		sub:     broker.Subscribe(),
		scripts: make(map[electra.ScriptHash]struct{}),
	}

	return &s
}

// run reads requests line by line until the connection fails or is closed.
func (s *Session) run() {

	s.wg.Add(1)
	go s.notify()

	defer func() {
		s.broker.Unsubscribe(s.sub)
		_ = s.conn.Close()
		s.wg.Wait()
	}()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 64*1024), s.cfg.MaxRequestBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		res := s.handle(line)
		err := s.send(res)
		if err != nil {
			s.log.Debug().Err(err).Msg("could not send response")
			return
		}
	}

	err := scanner.Err()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug().Err(err).Msg("connection failed")
	}
}

func (s *Session) handle(data []byte) Response {

	var req Request
	err := json.Unmarshal(data, &req)
	if err != nil {
		return Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: codeParse, Message: "could not parse request"},
		}
	}

	res := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	if req.Method == "" {
		res.Error = &Error{Code: codeInvalidRequest, Message: "missing method"}
		return res
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		res.Error = rpcErr
		return res
	}

	res.Result = result
	return res
}

func (s *Session) dispatch(req *Request) (interface{}, *Error) {
	switch req.Method {

	case "server.version":
		return []string{s.cfg.ServerName, s.cfg.ProtocolVersion}, nil

	case "server.banner":
		return s.cfg.Banner, nil

	case "server.ping":
		return nil, nil

	case "blockchain.headers.subscribe":
		return s.headersSubscribe()

	case "blockchain.block.header":
		return s.blockHeader(req.Params)

	case "blockchain.transaction.get":
		return s.transactionGet(req.Params)

	case "blockchain.scripthash.get_balance":
		return s.getBalance(req.Params)

	case "blockchain.scripthash.get_history":
		return s.getHistory(req.Params)

	case "blockchain.scripthash.listunspent":
		return s.listUnspent(req.Params)

	case "blockchain.scripthash.subscribe":
		return s.scriptSubscribe(req.Params)

	case "blockchain.scripthash.unsubscribe":
		return s.scriptUnsubscribe(req.Params)

	default:
		return nil, &Error{Code: codeMethodNotFound, Message: "unknown method: " + req.Method}
	}
}

func (s *Session) headersSubscribe() (interface{}, *Error) {

	s.mutex.Lock()
	s.headers = true
	s.mutex.Unlock()

	s.broker.Extend(s.sub, pubsub.TopicBlocks)

	cursor, err := s.index.Cursor()
	if errors.Is(err, electra.ErrNotFound) {
		return nil, &Error{Code: codeServerError, Message: "no blocks indexed yet"}
	}
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get cursor"}
	}

	header, err := s.index.Header(cursor.Height)
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get header"}
	}

	tip := Tip{
		Height: header.Height,
		Hex:    hex.EncodeToString(header.Raw),
	}
	return tip, nil
}

func (s *Session) blockHeader(params json.RawMessage) (interface{}, *Error) {

	var args []uint64
	err := json.Unmarshal(params, &args)
	if err != nil || len(args) == 0 {
		return nil, &Error{Code: codeInvalidParams, Message: "expected block height"}
	}
	if len(args) > 1 && args[1] != 0 {
		return nil, &Error{Code: codeInvalidParams, Message: "checkpoints are not supported"}
	}

	header, err := s.index.Header(args[0])
	if errors.Is(err, electra.ErrNotFound) {
		return nil, &Error{Code: codeServerError, Message: "no header at height"}
	}
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get header"}
	}

	return hex.EncodeToString(header.Raw), nil
}

func (s *Session) transactionGet(params json.RawMessage) (interface{}, *Error) {

	var args []json.RawMessage
	err := json.Unmarshal(params, &args)
	if err != nil || len(args) == 0 {
		return nil, &Error{Code: codeInvalidParams, Message: "expected transaction ID"}
	}

	var text string
	err = json.Unmarshal(args[0], &text)
	if err != nil {
		return nil, &Error{Code: codeInvalidParams, Message: "expected transaction ID"}
	}

	if len(args) > 1 {
		var verbose bool
		err = json.Unmarshal(args[1], &verbose)
		if err != nil || verbose {
			return nil, &Error{Code: codeInvalidParams, Message: "verbose transactions are not supported"}
		}
	}

	txID, err := chainhash.NewHashFromStr(text)
	if err != nil {
		return nil, &Error{Code: codeInvalidParams, Message: "invalid transaction ID"}
	}

	transaction, err := s.index.Transaction(*txID)
	if errors.Is(err, electra.ErrNotFound) {
		return nil, &Error{Code: codeServerError, Message: "unknown transaction"}
	}
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get transaction"}
	}

	return hex.EncodeToString(transaction.Raw), nil
}

func (s *Session) getBalance(params json.RawMessage) (interface{}, *Error) {

	script, rpcErr := scriptParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	confirmed, err := s.index.Balance(script)
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get balance"}
	}

	balance := Balance{
		Confirmed:   confirmed,
		Unconfirmed: 0,
	}
	return balance, nil
}

func (s *Session) getHistory(params json.RawMessage) (interface{}, *Error) {

	script, rpcErr := scriptParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	history, err := s.index.History(script)
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get history"}
	}

	items := make([]HistoryItem, 0, len(history))
	for _, ref := range history {
		item := HistoryItem{
			TxHash: ref.TxID.String(),
			Height: ref.Height,
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Session) listUnspent(params json.RawMessage) (interface{}, *Error) {

	script, rpcErr := scriptParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	unspents, err := s.index.Unspents(script)
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get unspent outputs"}
	}

	items := make([]UnspentItem, 0, len(unspents))
	for _, unspent := range unspents {
		item := UnspentItem{
			TxHash: unspent.Outpoint.TxID.String(),
			TxPos:  unspent.Outpoint.Index,
			Height: unspent.Height,
			Value:  unspent.Value,
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Session) scriptSubscribe(params json.RawMessage) (interface{}, *Error) {

	script, rpcErr := scriptParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.mutex.Lock()
	s.scripts[script] = struct{}{}
	s.mutex.Unlock()

	s.broker.Extend(s.sub, pubsub.TopicScript(script))

	history, err := s.index.History(script)
	if err != nil {
		return nil, &Error{Code: codeServerError, Message: "could not get history"}
	}

	status := scriptStatus(history)
	if status == nil {
		return nil, nil
	}
	return *status, nil
}

func (s *Session) scriptUnsubscribe(params json.RawMessage) (interface{}, *Error) {

	script, rpcErr := scriptParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.mutex.Lock()
	_, subscribed := s.scripts[script]
	delete(s.scripts, script)
	s.mutex.Unlock()

	return subscribed, nil
}

// notify forwards broker events for this session's subscriptions onto the
// connection. Script statuses are recomputed from the index at delivery time,
// so a burst of blocks collapses into notifications with the latest status.
func (s *Session) notify() {
	defer s.wg.Done()

	for event := range s.sub.Out() {
		switch payload := event.Payload.(type) {

		case *electra.Header:
			s.mutex.RLock()
			subscribed := s.headers
			s.mutex.RUnlock()
			if !subscribed {
				continue
			}
			tip := Tip{
				Height: payload.Height,
				Hex:    hex.EncodeToString(payload.Raw),
			}
			notification := Notification{
				JSONRPC: "2.0",
				Method:  "blockchain.headers.subscribe",
				Params:  []Tip{tip},
			}
			err := s.send(notification)
			if err != nil {
				s.log.Debug().Err(err).Msg("could not send headers notification")
				return
			}

		case electra.ScriptHash:
			s.mutex.RLock()
			_, subscribed := s.scripts[payload]
			s.mutex.RUnlock()
			if !subscribed {
				continue
			}
			history, err := s.index.History(payload)
			if err != nil {
				s.log.Warn().Err(err).Msg("could not get history for notification")
				continue
			}
			notification := Notification{
				JSONRPC: "2.0",
				Method:  "blockchain.scripthash.subscribe",
				Params:  []interface{}{payload.String(), scriptStatus(history)},
			}
			err = s.send(notification)
			if err != nil {
				s.log.Debug().Err(err).Msg("could not send script notification")
				return
			}
		}
	}
}

func (s *Session) send(v interface{}) error {

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.write.Lock()
	defer s.write.Unlock()
	_, err = s.conn.Write(data)
	return err
}

func scriptParam(params json.RawMessage) (electra.ScriptHash, *Error) {

	var args []string
	err := json.Unmarshal(params, &args)
	if err != nil || len(args) == 0 {
		return electra.ScriptHash{}, &Error{Code: codeInvalidParams, Message: "expected script hash"}
	}

	script, err := electra.ParseScriptHash(args[0])
	if err != nil {
		return electra.ScriptHash{}, &Error{Code: codeInvalidParams, Message: "invalid script hash"}
	}

	return script, nil
}
