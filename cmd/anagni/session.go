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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/client"
)

var flagDatabase string

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the session material of replicas",
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create the session material of a new replica",
		Example: "  anagni session new --db room > alice.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagDatabase == "" {
				return errors.New("--db is required")
			}

			auth := client.NewAuth(types.DatabaseID(flagDatabase), viper.GetString("rpcAddr"))
			marshalled, err := json.MarshalIndent(&auth, "", "  ")
			if err != nil {
				return errors.New("failed to marshal JSON")
			}
			fmt.Println(string(marshalled))

			return nil
		},
	}
	newCmd.Flags().StringVar(&flagDatabase, "db", "", "Database of the replica")
	cmd.AddCommand(newCmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(newSessionCmd())
}
