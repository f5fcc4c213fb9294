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

package profiling_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anagni-team/anagni/server/profiling"
	"github.com/anagni-team/anagni/server/profiling/prometheus"
)

func TestServer(t *testing.T) {
	t.Run("serve metrics test", func(t *testing.T) {
		metrics, err := prometheus.NewMetrics()
		assert.NoError(t, err)
		metrics.AddAppendedStatements("db", 3)

		server := profiling.NewServer(&profiling.Config{Port: 0}, metrics)
		assert.NoError(t, server.Start())
		defer server.Shutdown(true)

		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", server.Addr()))
		assert.NoError(t, err)
		defer func() {
			assert.NoError(t, resp.Body.Close())
		}()

		body, err := io.ReadAll(resp.Body)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.Contains(string(body), `anagni_replication_appended_statements_total{database="db"} 3`))
		assert.True(t, strings.Contains(string(body), "anagni_server_version"))
	})

	t.Run("pprof disabled test", func(t *testing.T) {
		server := profiling.NewServer(&profiling.Config{Port: 0}, nil)
		assert.NoError(t, server.Start())
		defer server.Shutdown(false)

		resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/", server.Addr()))
		assert.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
