// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main defines the server interface for specgrep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/GoogleCloudPlatform/specgrep/internal/mocha"
	"github.com/GoogleCloudPlatform/specgrep/internal/version"
	"github.com/GoogleCloudPlatform/specgrep/pkg/specgrep"
)

func main() {
	logger, err := specgrep.NewLogger(os.Getenv("LOG_LEVEL"), os.Stdout, os.Stderr)
	if err != nil {
		logger, _ = specgrep.NewLogger("info", os.Stdout, os.Stderr)
		logger.Warn("invalid LOG_LEVEL, using INFO", "error", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	folder := os.Getenv("SPECGREP_INTEGRATION_FOLDER")
	if folder == "" {
		folder = "."
	}

	concurrency, err := strconv.Atoi(os.Getenv("CONCURRENCY"))
	if err != nil && os.Getenv("CONCURRENCY") != "" {
		logger.Warn("CONCURRENCY must be a valid integer", "error", err)
	}

	cacheLifetime := 5 * time.Minute
	if v := os.Getenv("CACHE_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Warn("CACHE_LIFETIME must be a valid duration", "error", err)
		} else {
			cacheLifetime = d
		}
	}

	selector, err := specgrep.NewSelector(mocha.Resolver(), concurrency, logger)
	if err != nil {
		logger.Error("failed to create selector", "error", err)
		os.Exit(1)
	}

	cache := specgrep.NewTimerCache(cacheLifetime)
	defer cache.Stop()

	grepServer, err := specgrep.NewServer(selector, folder, cache, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/select", grepServer.SelectHandler())
	mux.Handle("/match", grepServer.MatchHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server is listening", "port", port, "version", version.HumanVersion)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	<-signalCh

	logger.Info("received stop, shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
}
