package gate

import "context"

// Screener is the advisory fraud and compliance hook consulted after every
// other rule has passed. It may downgrade an admission to blocked but can
// never approve something the rules refused. Implementations must be
// deterministic for a given request so admissions are replayable.
type Screener interface {
	Screen(ctx context.Context, req Request) (pass bool, reason string)
}

// PassScreener admits everything. It is the default hook.
type PassScreener struct{}

// Screen always passes
func (PassScreener) Screen(ctx context.Context, req Request) (bool, string) {
	return true, ""
}
