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

package mocks

import (
	"testing"

	"github.com/electra-labs/electra/models/electra"
)

type Writer struct {
	ApplyFunc   func(block *electra.Block) error
	RetractFunc func(block *electra.Block) error
	CloseFunc   func() error
}

func BaselineWriter(t *testing.T) *Writer {
	t.Helper()

	w := Writer{
		ApplyFunc: func(*electra.Block) error {
			return nil
		},
		RetractFunc: func(*electra.Block) error {
			return nil
		},
		CloseFunc: func() error {
			return nil
		},
	}

	return &w
}

func (w *Writer) Apply(block *electra.Block) error {
	return w.ApplyFunc(block)
}

func (w *Writer) Retract(block *electra.Block) error {
	return w.RetractFunc(block)
}

func (w *Writer) Close() error {
	return w.CloseFunc()
}
