package driven

import "context"

// NetworkProbe answers whether the terminal has outbound connectivity at all,
// before the remote store itself is tried.
type NetworkProbe interface {
	Reachable(ctx context.Context) error
}
