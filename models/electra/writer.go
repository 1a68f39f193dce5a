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

package electra

// Writer represents something that can extend or rewind the script hash
// index. There is exactly one writer per index; all mutations for one block
// are committed as a single atomic unit together with the sync cursor.
type Writer interface {
	Apply(block *Block) error
	Retract(block *Block) error
	Close() error
}
