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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/dgraph-io/badger/v2"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/ziflex/lecho/v2"

	"github.com/electra-labs/electra/api/electrum"
	"github.com/electra-labs/electra/api/rest"
	"github.com/electra-labs/electra/codec/zbor"
	"github.com/electra-labs/electra/engine"
	"github.com/electra-labs/electra/models/electra"
	"github.com/electra-labs/electra/service/chain"
	"github.com/electra-labs/electra/service/index"
	"github.com/electra-labs/electra/service/mapper"
	"github.com/electra-labs/electra/service/metrics"
	"github.com/electra-labs/electra/service/pubsub"
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
		flagIndex    string
		flagLevel    string
		flagNode     string
		flagUser     string
		flagPass     string
		flagStart    uint64
		flagElectrum string
		flagREST     string
		flagMetrics  bool
		flagAddress  string
	)

	pflag.StringVarP(&flagIndex, "index", "i", "index", "path to database directory for script hash index")
	pflag.StringVarP(&flagLevel, "level", "l", "info", "log output level")
	pflag.StringVarP(&flagNode, "node", "n", "127.0.0.1:8332", "host and port of the bitcoin node JSON-RPC interface")
	pflag.StringVarP(&flagUser, "user", "u", "", "username for the bitcoin node JSON-RPC interface")
	pflag.StringVarP(&flagPass, "pass", "p", "", "password for the bitcoin node JSON-RPC interface")
	pflag.Uint64VarP(&flagStart, "start", "s", 0, "height at which indexing starts on an empty index")
	pflag.StringVarP(&flagElectrum, "electrum", "e", ":50001", "listen address for the electrum API")
	pflag.StringVarP(&flagREST, "rest", "r", ":8080", "listen address for the REST API")
	pflag.BoolVarP(&flagMetrics, "metrics", "m", false, "enable metrics server")
	pflag.StringVarP(&flagAddress, "metrics-address", "a", ":9090", "listen address for the metrics server")

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

	// Validate the listen and dial addresses before anything binds to them.
	addresses := struct {
		Node     string `validate:"required,hostname_port"`
		Electrum string `validate:"required,hostname_port"`
		REST     string `validate:"required,hostname_port"`
		Metrics  string `validate:"required,hostname_port"`
	}{
		Node:     flagNode,
		Electrum: flagElectrum,
		REST:     flagREST,
		Metrics:  flagAddress,
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

	// Initialize the index reader and writer, with metrics on the writer when
	// the metrics server is enabled.
	read, err := index.NewReader(db, lib)
	if err != nil {
		log.Error().Err(err).Msg("could not initialize index reader")
		return failure
	}
	var write electra.Writer
	write = index.NewWriter(db, lib)
	if flagMetrics {
		write = metrics.NewMetricsWriter(write)
	}
	defer func() {
		err := write.Close()
		if err != nil {
			log.Error().Err(err).Msg("could not close index writer")
		}
	}()

	// The broker fans out index events to the API sessions.
	broker := pubsub.NewBroker(log)
	defer broker.Close()

	// Initialize the transitions with the dependencies and add them to the FSM.
	transitions := mapper.NewTransitions(log, node, read, write, broker,
		mapper.WithStartHeight(flagStart),
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

	// Electrum API.
	electrumSvr := electrum.NewServer(log, read, broker, flagElectrum)

	// REST API.
	restSvr := echo.New()
	restSvr.HideBanner = true
	restSvr.HidePort = true
	elog := lecho.From(log)
	restSvr.Logger = elog
	restSvr.Use(lecho.Middleware(lecho.Config{Logger: elog}))
	controller, err := rest.NewController(read)
	if err != nil {
		log.Error().Err(err).Msg("could not create REST controller")
		return failure
	}
	controller.Register(restSvr)

	// Metrics server.
	msvr := metrics.NewServer(log, flagAddress)

	e := engine.New(log, "Electra Live", sig).
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
		Component(
			"electrum API",
			func() error {
				return electrumSvr.Start()
			},
			func() {
				electrumSvr.Stop()
			},
		).
		Component(
			"REST API",
			func() error {
				err := restSvr.Start(flagREST)
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = restSvr.Shutdown(ctx)
			},
		)
	if flagMetrics {
		e = e.Component(
			"metrics server",
			func() error {
				return msvr.Start()
			},
			func() {
				msvr.Stop()
			},
		)
	}

	err = e.Run()
	if err != nil {
		log.Error().Err(err).Msg("engine failed")
		return failure
	}

	return success
}
