// Copyright 2024 The full-service Authors
// This file is part of full-service.
//
// full-service is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// full-service is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with full-service. If not, see <http://www.gnu.org/licenses/>.

// full-service is the wallet daemon: it syncs accounts against the ledger
// and serves the wallet JSON-RPC API.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mobilecoinofficial/full-service/internal/walletapi"
	"github.com/mobilecoinofficial/full-service/ledger/memledger"
	"github.com/mobilecoinofficial/full-service/wallet"
	"github.com/mobilecoinofficial/full-service/walletdb"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the wallet database",
	}
	httpHostFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "JSON-RPC server listening interface",
	}
	httpPortFlag = &cli.IntFlag{
		Name:  "http.port",
		Usage: "JSON-RPC server listening port",
	}
	syncIntervalFlag = &cli.DurationFlag{
		Name:  "sync.interval",
		Usage: "Ledger polling interval",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a rotated file in addition to the terminal",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
	}
)

func main() {
	app := &cli.App{
		Name:  "full-service",
		Usage: "MobileCoin wallet service",
		Flags: []cli.Flag{
			configFlag, dataDirFlag, httpHostFlag, httpPortFlag,
			syncIntervalFlag, logFileFlag, verbosityFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cfg Config) {
	usecolor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(usecolor))
	if cfg.LogFile != "" {
		fileHandler := log.StreamHandler(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 10,
		}, log.LogfmtFormat())
		handler = log.MultiHandler(handler, fileHandler)
	}
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(cfg.Verbosity), handler))
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return err
	}
	db, err := walletdb.Open(filepath.Join(cfg.DataDir, "wallet.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	// The ledger connector is in-memory until a consensus connection is
	// configured; accounts, balances and transaction construction all work
	// against it, which is what the offline signing flow needs.
	ldg := memledger.New()
	service := wallet.NewService(db, ldg, ldg, nil)

	worker := wallet.NewSyncWorker(service, cfg.SyncInterval)
	worker.Start()
	defer worker.Stop()

	server, err := walletapi.NewServer(service)
	if err != nil {
		return err
	}
	defer server.Stop()

	endpoint := net.JoinHostPort(cfg.HTTPHost, fmt.Sprintf("%d", cfg.HTTPPort))
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("RPC server stopped", "err", err)
		}
	}()
	log.Info("JSON-RPC server started", "endpoint", endpoint)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info("Shutting down")
	return httpServer.Close()
}
