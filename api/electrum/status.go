// Copyright 2023 Electra Labs
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package electrum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/electra-labs/electra/models/electra"
)

// scriptStatus computes the Electrum status of a script hash from its
// confirmed history: the hash of the colon-separated transaction IDs and
// heights, in index order. A script without history has a null status.
func scriptStatus(history []electra.TxRef) *string {
	if len(history) == 0 {
		return nil
	}

	digest := sha256.New()
	for _, ref := range history {
		fmt.Fprintf(digest, "%s:%d:", ref.TxID.String(), ref.Height)
	}

	status := hex.EncodeToString(digest.Sum(nil))
	return &status
}
