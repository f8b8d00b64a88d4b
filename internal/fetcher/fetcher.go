package fetcher

import (
	"context"
	"time"
)

// Fetcher retrieves one snapshot of the miner's status endpoint.
type Fetcher interface {
	Fetch(ctx context.Context) Snapshot
}

// Snapshot is the outcome of one poll. An unreachable snapshot carries no
// Info; callers branch on Reachable instead of handling an error.
type Snapshot struct {
	Reachable bool
	FetchedAt time.Time
	Info      SystemInfo
}

// Present wraps a decoded payload.
func Present(info SystemInfo, at time.Time) Snapshot {
	return Snapshot{Reachable: true, FetchedAt: at, Info: info}
}

// Unreachable marks a failed poll.
func Unreachable(at time.Time) Snapshot {
	return Snapshot{FetchedAt: at}
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context) Snapshot

// Fetch calls f(ctx).
func (f FetchFunc) Fetch(ctx context.Context) Snapshot {
	return f(ctx)
}
