package domain

import "context"

// Fetcher retrieves a single artifact and reports a typed outcome.
// Failures are returned in the outcome, never as a panic.
type Fetcher interface {
	// Fetch runs every attempt of req and returns once the artifact is written
	// or the attempts are exhausted
	Fetch(ctx context.Context, req FetchRequest) FetchOutcome
}

// FetcherFunc adapts a plain function to the Fetcher interface
type FetcherFunc func(ctx context.Context, req FetchRequest) FetchOutcome

// Fetch calls f(ctx, req)
func (f FetcherFunc) Fetch(ctx context.Context, req FetchRequest) FetchOutcome {
	return f(ctx, req)
}
