// Package internal holds helpers private to goToken: signing key generation
// for the CLI and examples.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations)
//   - cli: the gotoken command tree
//   - rate: Redis fixed-window counter behind the refresh throttle
package internal
