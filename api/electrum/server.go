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

// Package electrum implements a server for the Electrum wire protocol: a TCP
// listener speaking newline-delimited JSON-RPC 2.0, with persistent sessions
// and server-initiated subscription notifications.
package electrum

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/pubsub"
)

// Server accepts client connections and spawns a session for each one.
type Server struct {
	log     zerolog.Logger
	cfg     Config
	index   electra.Reader
	broker  *pubsub.Broker
	address string

	mutex    sync.Mutex
	listener net.Listener
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a new server serving queries from the given index reader
// and subscription events from the given broker.
func NewServer(log zerolog.Logger, index electra.Reader, broker *pubsub.Broker, address string, options ...func(*Config)) *Server {

	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	s := Server{
		log:      log.With().Str("component", "electrum_server").Logger(),
		cfg:      cfg,
		index:    index,
		broker:   broker,
		address:  address,
		sessions: make(map[*Session]struct{}),
	}

	return &s
}

// Start listens on the configured address and serves connections until the
// server is stopped.
func (s *Server) Start() error {

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.address, err)
	}

	s.mutex.Lock()
	s.listener = listener
	s.mutex.Unlock()

	s.log.Info().Str("address", listener.Addr().String()).Msg("electrum server started")

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			break
		}
		if err != nil {
			return fmt.Errorf("could not accept connection: %w", err)
		}

		session := newSession(s.log, s.cfg, s.index, s.broker, conn)

		s.mutex.Lock()
		s.sessions[session] = struct{}{}
		s.mutex.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.run()
			s.mutex.Lock()
			delete(s.sessions, session)
			s.mutex.Unlock()
		}()
	}

	s.wg.Wait()

	return nil
}

// Stop closes the listener and all active sessions.
func (s *Server) Stop() {

	s.mutex.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for session := range s.sessions {
		_ = session.conn.Close()
	}
	s.mutex.Unlock()

	s.wg.Wait()

	s.log.Info().Msg("electrum server stopped")
}
