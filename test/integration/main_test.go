//go:build integration

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

package integration

import (
	"log"
	"os"
	"testing"

	"github.com/anagni-team/anagni/server"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/test/helper"
)

var defaultServer *server.Anagni

func TestMain(m *testing.M) {
	if err := logging.SetLogLevel("error"); err != nil {
		log.Fatal(err)
	}

	s, err := server.New(helper.TestConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
	if err := helper.WaitForServerToStart(s.RPCAddr()); err != nil {
		log.Fatal(err)
	}
	defaultServer = s

	code := m.Run()
	if err := defaultServer.Shutdown(true); err != nil {
		log.Println(err)
	}
	os.Exit(code)
}
