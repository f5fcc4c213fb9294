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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anagni-team/anagni/api/types"
	"github.com/anagni-team/anagni/client"
	"github.com/anagni-team/anagni/pkg/machine"
)

var (
	flagAppendDB     string
	flagAppendOnly   []string
	flagAppendExcept []string
	flagAppendWait   time.Duration
)

// pollInterval is how often the commands look at the progress of a client.
const pollInterval = 50 * time.Millisecond

type rawOutput = client.Output[json.RawMessage, struct{}]

func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append [options] payload...",
		Short: "Append statements to a database",
		Long: "Append statements to a database as a new replica. A payload that is " +
			"not valid JSON is appended as a JSON string.",
		Example: `  anagni append --db room '{"move":"e4"}' hello`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagAppendDB == "" {
				return errors.New("--db is required")
			}
			ac, err := accessControl(flagAppendOnly, flagAppendExcept)
			if err != nil {
				return err
			}

			payloads := make([]json.RawMessage, 0, len(args))
			for _, arg := range args {
				payload, err := toPayload(arg)
				if err != nil {
					return err
				}
				payloads = append(payloads, payload)
			}

			replica := client.FromMachines[json.RawMessage, struct{}](
				func(_ context.Context, _ types.ReplicaID) machine.Stream[rawOutput] {
					outs := make([]rawOutput, 0, len(payloads))
					for _, payload := range payloads {
						outs = append(outs, client.Emit[json.RawMessage, struct{}](payload, ac))
					}
					return machine.Of(outs...)
				},
				machine.Empty[*types.RawStatement, rawOutput](),
			)

			auth := client.NewAuth(types.DatabaseID(flagAppendDB), viper.GetString("rpcAddr"))
			cli := client.New[json.RawMessage, struct{}](auth, replica, nil, clientOptions()...)

			ctx, cancel := context.WithTimeout(cmd.Context(), flagAppendWait)
			defer cancel()
			if err := cli.Connect(ctx); err != nil {
				return err
			}
			defer cli.Disconnect()

			if err := waitFor(ctx, cli, func(s client.Stats) bool {
				return s.SentPointer >= int64(len(payloads))
			}); err != nil {
				return err
			}

			cmd.Printf("appended %d statement(s) to %s as %s\n", len(payloads), auth.Database, auth.ReplicaID)
			return nil
		},
	}
}

// toPayload returns the argument itself if it is valid JSON, otherwise the
// argument as a JSON string.
func toPayload(arg string) (json.RawMessage, error) {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg), nil
	}

	marshalled, err := json.Marshal(arg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return marshalled, nil
}

func accessControl(only, except []string) (types.AccessControl, error) {
	if len(only) > 0 && len(except) > 0 {
		return types.AccessControl{}, errors.New("--only and --except are exclusive")
	}

	if len(only) > 0 {
		return types.Only(toReplicaIDs(only)...), nil
	}
	if len(except) > 0 {
		return types.Except(toReplicaIDs(except)...), nil
	}
	return types.All(), nil
}

func toReplicaIDs(ids []string) []types.ReplicaID {
	replicas := make([]types.ReplicaID, 0, len(ids))
	for _, id := range ids {
		replicas = append(replicas, types.ReplicaID(id))
	}
	return replicas
}

// waitFor polls the progress of the client until cond holds, the session
// ends or ctx is done.
func waitFor[T, U any](ctx context.Context, cli *client.Client[T, U], cond func(client.Stats) bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		stats := cli.Stats()
		if cond(stats) {
			return nil
		}
		if stats.State == client.Down {
			if err := cli.Wait(ctx); err != nil {
				return err
			}
			return client.ErrNotConnected
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	cmd := newAppendCmd()
	cmd.Flags().StringVar(&flagAppendDB, "db", "", "Database to append to")
	cmd.Flags().StringSliceVar(&flagAppendOnly, "only", nil, "Replicas allowed to see the payloads")
	cmd.Flags().StringSliceVar(&flagAppendExcept, "except", nil, "Replicas not allowed to see the payloads")
	cmd.Flags().DurationVar(&flagAppendWait, "timeout", 30*time.Second, "Time to wait for the statements to be appended")
	rootCmd.AddCommand(cmd)
}
