/*
 * Copyright 2026 The Anagni Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/server"
	"github.com/anagni-team/anagni/server/backend/database/mongo"
	"github.com/anagni-team/anagni/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath   string
	flagLogLevel   string
	flagSealCipher string

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoAnagniDatabase    string
	mongoPingTimeout       time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Anagni server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.RPC.SealCipher = codec.Cipher(flagSealCipher)

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					AnagniDatabase:    mongoAnagniDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			a, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := a.Start(); err != nil {
				return err
			}

			if code := handleSignal(a); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(a *server.Anagni) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-a.ShutdownCh():
		// anagni is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := a.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().StringVar(
		&conf.RPC.CertFile,
		"rpc-cert-file",
		"",
		"RPC certification file's path",
	)
	cmd.Flags().StringVar(
		&conf.RPC.KeyFile,
		"rpc-key-file",
		"",
		"RPC key file's path",
	)
	cmd.Flags().Uint64Var(
		&conf.RPC.MaxRequestBytes,
		"rpc-max-requests-bytes",
		server.DefaultRPCMaxRequestBytes,
		"Maximum client request size in bytes the server will accept.",
	)
	cmd.Flags().StringVar(
		&conf.RPC.MaxConnectionAge,
		"rpc-max-connection-age",
		server.DefaultRPCMaxConnectionAge.String(),
		"Maximum duration of connection may exist before it will be closed by sending a GoAway.",
	)
	cmd.Flags().StringVar(
		&conf.RPC.MaxConnectionAgeGrace,
		"rpc-max-connection-age-grace",
		server.DefaultRPCMaxConnectionAgeGrace.String(),
		"Additional grace period after MaxConnectionAge after which connections will be forcibly closed.",
	)
	cmd.Flags().IntVar(
		&conf.RPC.MaxConnections,
		"rpc-max-connections",
		0,
		"Maximum number of simultaneous TCP connections. Zero means no limit.",
	)
	cmd.Flags().StringVar(
		&conf.RPC.SealSecret,
		"rpc-seal-secret",
		"",
		"Shared secret sealing the frames. Frames are not sealed when empty.",
	)
	cmd.Flags().StringVar(
		&flagSealCipher,
		"rpc-seal-cipher",
		string(server.DefaultRPCSealCipher),
		"AEAD of the seal layer: aes-256-gcm, chacha20-poly1305",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.DrainBatchSize,
		"backend-drain-batch-size",
		server.DefaultDrainBatchSize,
		"Number of statements read from the store at once while a connection catches up.",
	)
	cmd.Flags().Int64Var(
		&conf.Backend.MaxConcurrentDrains,
		"backend-max-concurrent-drains",
		server.DefaultMaxConcurrentDrains,
		"Number of catch-up loops that may read the store at the same time.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SecretHashCost,
		"backend-secret-hash-cost",
		server.DefaultSecretHashCost,
		"The bcrypt cost used to hash replica secrets.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoAnagniDatabase,
		"mongo-database",
		server.DefaultMongoAnagniDatabase,
		"Anagni's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)

	rootCmd.AddCommand(cmd)
}
