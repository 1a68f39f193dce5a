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

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/dgraph-io/badger/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/electra-labs/electra/codec/zbor"
	"github.com/electra-labs/electra/engine"
	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/chain"
	"github.com/electra-labs/electra/service/index"
	"github.com/electra-labs/electra/service/mapper"
	"github.com/electra-labs/electra/service/storage"
)

const (
	success = 0
	failure = 1
)

func main() {
	os.Exit(run())
}

func run() int {

	// Signal catching for clean shutdown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	// Command line parameter initialization.
	var (
		flagIndex string
		flagLevel string
		flagNode  string
		flagUser  string
		flagPass  string
		flagStart uint64
		flagEnd   uint64
	)

	pflag.StringVarP(&flagIndex, "index", "i", "index", "path to database directory for script hash index")
	pflag.StringVarP(&flagLevel, "level", "l", "info", "log output level")
	pflag.StringVarP(&flagNode, "node", "n", "127.0.0.1:8332", "host and port of the bitcoin node JSON-RPC interface")
	pflag.StringVarP(&flagUser, "user", "u", "", "username for the bitcoin node JSON-RPC interface")
	pflag.StringVarP(&flagPass, "pass", "p", "", "password for the bitcoin node JSON-RPC interface")
	pflag.Uint64VarP(&flagStart, "start", "s", 0, "height at which indexing starts on an empty index")
	pflag.Uint64VarP(&flagEnd, "end", "e", 0, "height after which indexing stops")

	pflag.Parse()

	// Increase the GOMAXPROCS value in order to use the full IOPS available, see:
	// https://groups.google.com/g/golang-nuts/c/jPb_h3TvlKE
	_ = runtime.GOMAXPROCS(128)

	// Logger initialization.
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Error().Str("level", flagLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	// Validate the node address before dialing it.
	addresses := struct {
		Node string `validate:"required,hostname_port"`
	}{
		Node: flagNode,
	}
	err = validator.New().Struct(addresses)
	if err != nil {
		log.Error().Err(err).Msg("invalid address flags")
		return failure
	}

	// Open the index database.
	db, err := badger.Open(electra.DefaultOptions(flagIndex))
	if err != nil {
		log.Error().Str("index", flagIndex).Err(err).Msg("could not open index database")
		return failure
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Error().Err(err).Msg("could not close index database")
		}
	}()

	// The storage library is initialized with a codec and provides functions
	// to interact with a Badger database while encoding and compressing
	// transparently.
	codec := zbor.NewCodec()
	lib := storage.New(codec)

	// Connect to the bitcoin node.
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         flagNode,
		User:         flagUser,
		Pass:         flagPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		log.Error().Str("node", flagNode).Err(err).Msg("could not create node client")
		return failure
	}
	defer client.Shutdown()
	node := chain.FromRPC(log, client)

	// Initialize the index reader and writer.
	read, err := index.NewReader(db, lib)
	if err != nil {
		log.Error().Err(err).Msg("could not initialize index reader")
		return failure
	}
	write := index.NewWriter(db, lib)
	defer func() {
		err := write.Close()
		if err != nil {
			log.Error().Err(err).Msg("could not close index writer")
		}
	}()

	// Initialize the transitions with the dependencies and add them to the FSM.
	transitions := mapper.NewTransitions(log, node, read, write, nil,
		mapper.WithStartHeight(flagStart),
		mapper.WithEndHeight(flagEnd),
	)
	state := mapper.EmptyState()
	fsm := mapper.NewFSM(state,
		mapper.WithTransition(mapper.StatusInitialize, transitions.InitializeIndex),
		mapper.WithTransition(mapper.StatusIdle, transitions.WatchChain),
		mapper.WithTransition(mapper.StatusForward, transitions.ForwardIndex),
		mapper.WithTransition(mapper.StatusReorg, transitions.DetectReorg),
		mapper.WithTransition(mapper.StatusRollback, transitions.RollbackBlocks),
		mapper.WithTransition(mapper.StatusHalted, transitions.HaltIndexing),
	)

	err = engine.New(log, "Electra Indexer", sig).
		Component(
			"mapper",
			func() error {
				return fsm.Run()
			},
			func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				_ = fsm.Stop(ctx)
			},
		).
		Run()
	if err != nil {
		log.Error().Err(err).Msg("engine failed")
		return failure
	}

	return success
}
