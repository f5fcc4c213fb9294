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

package replication

import "github.com/anagni-team/anagni/api/types"

// Filter returns the statement as the receiver may see it. The author always
// sees its own statements; other replicas outside the access control get the
// statement without its payload.
func Filter(stmt *types.RawStatement, receiver types.ReplicaID) *types.RawStatement {
	if stmt.Replica == receiver || stmt.AccessControl.Allows(receiver) {
		return stmt
	}
	return types.Obscure(stmt)
}
