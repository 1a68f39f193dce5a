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

// Config contains optional parameters we can set for the server.
type Config struct {
	ServerName      string
	ProtocolVersion string
	Banner          string
	MaxRequestBytes int
}

// DefaultConfig are the default settings for the server.
var DefaultConfig = Config{
	ServerName:      "electra",
	ProtocolVersion: "1.4",
	Banner:          "Welcome to an Electra server.",
	MaxRequestBytes: 1 << 20,
}

// WithServerName sets the software identifier reported by server.version.
func WithServerName(name string) func(*Config) {
	return func(cfg *Config) {
		cfg.ServerName = name
	}
}

// WithBanner sets the text served on server.banner.
func WithBanner(banner string) func(*Config) {
	return func(cfg *Config) {
		cfg.Banner = banner
	}
}

// WithMaxRequestBytes limits the size of a single request line.
func WithMaxRequestBytes(max int) func(*Config) {
	return func(cfg *Config) {
		cfg.MaxRequestBytes = max
	}
}
