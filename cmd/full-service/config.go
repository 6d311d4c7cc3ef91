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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// Config is the TOML-loadable daemon configuration. Command-line flags
// override file values.
type Config struct {
	DataDir      string
	HTTPHost     string
	HTTPPort     int
	SyncInterval time.Duration
	LogFile      string
	Verbosity    int
}

func defaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:      filepath.Join(home, ".full-service"),
		HTTPHost:     "127.0.0.1",
		HTTPPort:     9090,
		SyncInterval: 5 * time.Second,
		Verbosity:    3,
	}
}

func loadConfig(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(httpHostFlag.Name) {
		cfg.HTTPHost = ctx.String(httpHostFlag.Name)
	}
	if ctx.IsSet(httpPortFlag.Name) {
		cfg.HTTPPort = ctx.Int(httpPortFlag.Name)
	}
	if ctx.IsSet(syncIntervalFlag.Name) {
		cfg.SyncInterval = ctx.Duration(syncIntervalFlag.Name)
	}
	if ctx.IsSet(logFileFlag.Name) {
		cfg.LogFile = ctx.String(logFileFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	return cfg, nil
}
