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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/client"
	"github.com/anagni-team/anagni/pkg/machine"
)

var (
	flagLogDB     string
	flagLogFollow bool
	flagLogWait   time.Duration
)

// collector is a replica keeping the statements it observes.
type collector struct {
	mu    sync.Mutex
	stmts []*types.RawStatement
	each  func(*types.RawStatement)
}

func (c *collector) Init(_ context.Context, _ types.ReplicaID) machine.Stream[rawOutput] {
	return machine.Of[rawOutput]()
}

func (c *collector) Dispatch(_ context.Context, stmt *types.RawStatement) machine.Stream[rawOutput] {
	c.mu.Lock()
	c.stmts = append(c.stmts, stmt)
	c.mu.Unlock()

	if c.each != nil {
		c.each(stmt)
	}
	return machine.Of[rawOutput]()
}

func (c *collector) statements() []*types.RawStatement {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*types.RawStatement(nil), c.stmts...)
}

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "log [options]",
		Short:   "Print the statements of a database",
		Example: "  anagni log --db room --follow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagLogDB == "" {
				return errors.New("--db is required")
			}

			replica := &collector{}
			if flagLogFollow {
				replica.each = func(stmt *types.RawStatement) {
					cmd.Println(strings.Join(toRow(stmt), "\t"))
				}
			}

			auth := client.NewAuth(types.DatabaseID(flagLogDB), viper.GetString("rpcAddr"))
			cli := client.New[json.RawMessage, struct{}](auth, replica, nil, clientOptions()...)

			if err := cli.Connect(cmd.Context()); err != nil {
				return err
			}
			defer cli.Disconnect()

			if flagLogFollow {
				return cli.Wait(cmd.Context())
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flagLogWait)
			defer cancel()
			total := cli.Stats().TotalCount
			if err := waitFor(ctx, cli, func(s client.Stats) bool {
				return s.ReceivedPointer >= total
			}); err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateHeader = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{
				"INDEX",
				"REPLICA",
				"TIME",
				"ACCESS",
				"PAYLOAD",
			})
			for _, stmt := range replica.statements() {
				row := toRow(stmt)
				tw.AppendRow(table.Row{row[0], row[1], row[2], row[3], row[4]})
			}
			cmd.Printf("%s\n", tw.Render())

			return nil
		},
	}
}

func toRow(stmt *types.RawStatement) []string {
	access := string(stmt.AccessControl.Mode)
	if len(stmt.AccessControl.Replicas) > 0 {
		ids := make([]string, 0, len(stmt.AccessControl.Replicas))
		for _, id := range stmt.AccessControl.Replicas {
			ids = append(ids, string(id))
		}
		access = fmt.Sprintf("%s(%s)", access, strings.Join(ids, ","))
	}

	payload := string(stmt.Payload)
	if stmt.Obscured {
		payload = "<obscured>"
	}

	return []string{
		fmt.Sprintf("%d", stmt.Index),
		string(stmt.Replica),
		stmt.CreatedAt().UTC().Format(time.RFC3339),
		access,
		payload,
	}
}

func init() {
	cmd := newLogCmd()
	cmd.Flags().StringVar(&flagLogDB, "db", "", "Database to print")
	cmd.Flags().BoolVarP(&flagLogFollow, "follow", "f", false, "Keep printing statements as they are appended")
	cmd.Flags().DurationVar(&flagLogWait, "timeout", 30*time.Second, "Time to wait for the log to be received")
	rootCmd.AddCommand(cmd)
}
