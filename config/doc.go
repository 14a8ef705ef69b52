// Package config loads a goToken.Config from a file and the environment.
//
// Files may be YAML, JSON or TOML; the format follows the extension.
// Every key can be overridden by an environment variable with the GOTOKEN_
// prefix, dots replaced by underscores (token.ttl becomes GOTOKEN_TOKEN_TTL).
// Durations use Go syntax ("15m", "36h").
//
// The file schema is checked with struct tags before the result is handed
// to goToken.Config.Validate. [Watch] reloads on file changes; an Engine is
// immutable, so callers rebuild it from the new Config.
package config
