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

// Package main is the entry point of the Anagni CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anagni-team/anagni/client"
	"github.com/anagni-team/anagni/pkg/codec"
)

var rootCmd = &cobra.Command{
	Use:   "anagni",
	Short: "Total order broadcast for deterministic replicas",
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

// clientOptions returns the options of the client from the flags and the
// environment.
func clientOptions() []client.Option {
	opts := []client.Option{
		client.WithJoinTimeout(viper.GetDuration("joinTimeout")),
	}
	if secret := viper.GetString("sealSecret"); secret != "" {
		opts = append(opts, client.WithSeal(secret, codec.Cipher(viper.GetString("sealCipher"))))
	}
	if certFile := viper.GetString("certFile"); certFile != "" {
		opts = append(opts, client.WithCertFile(certFile))
	}
	return opts
}

func mustBind(key, flag, env string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Fprintf(os.Stderr, "bind %s: %v\n", flag, err)
		os.Exit(1)
	}
	if env == "" {
		return
	}
	if err := viper.BindEnv(key, env); err != nil {
		fmt.Fprintf(os.Stderr, "bind %s: %v\n", env, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("rpc-addr", "localhost:11101", "Address of the rpc server")
	rootCmd.PersistentFlags().String("seal-secret", "", "Shared secret sealing the frames")
	rootCmd.PersistentFlags().String("seal-cipher", string(codec.ChaCha20Poly1305), "Cipher of the seal layer")
	rootCmd.PersistentFlags().String("cert-file", "", "Certificate file of the rpc server")
	rootCmd.PersistentFlags().Duration("join-timeout", client.DefaultJoinTimeout, "Time to wait for the server to accept a join")

	mustBind("rpcAddr", "rpc-addr", "ANAGNI_RPC_ADDR")
	mustBind("sealSecret", "seal-secret", "ANAGNI_SEAL_SECRET")
	mustBind("sealCipher", "seal-cipher", "")
	mustBind("certFile", "cert-file", "")
	mustBind("joinTimeout", "join-timeout", "")
}
