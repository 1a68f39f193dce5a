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

package mapper

import (
	"math"

	"github.com/electra-labs/electra/models/electra"
)

// State is the state machine's state.
type State struct {
	status Status
	height uint64
	tip    electra.Header
	done   chan struct{}
}

// EmptyState returns a new empty state, ready for initialization.
func EmptyState() *State {

	s := State{
		status: StatusInitialize,
		height: math.MaxUint64,
		done:   make(chan struct{}),
	}

	return &s
}
