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
	"time"
)

// Config contains optional parameters we can set for the mapper.
type Config struct {
	StartHeight  uint64
	EndHeight    uint64
	WaitInterval time.Duration
}

// DefaultConfig are the default settings for the mapper.
var DefaultConfig = Config{
	StartHeight:  0,
	EndHeight:    0,
	WaitInterval: 1 * time.Second,
}

// WithStartHeight sets the height at which indexing starts when the index is
// still empty.
func WithStartHeight(height uint64) func(*Config) {
	return func(cfg *Config) {
		cfg.StartHeight = height
	}
}

// WithEndHeight sets the height after which the mapper stops indexing. When
// zero, the mapper follows the chain indefinitely.
func WithEndHeight(height uint64) func(*Config) {
	return func(cfg *Config) {
		cfg.EndHeight = height
	}
}

// WithWaitInterval sets the interval at which the mapper polls the chain for
// a new tip when it is caught up.
func WithWaitInterval(interval time.Duration) func(*Config) {
	return func(cfg *Config) {
		cfg.WaitInterval = interval
	}
}
