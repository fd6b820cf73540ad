// Package expert provides the analysis unit implementations: role-prompted
// wrappers around a chat model backend, plus a deterministic offline variant.
package expert

import "context"

// ChatClient abstracts the model backend behind a single-turn exchange.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}
