// Package matcher defines the pairwise image matcher contract and a registry
// of named matcher constructors.
package matcher

import (
	"context"
	"errors"
)

// Sentinel kinds for matcher errors.
var (
	ErrUnknownMatcher = errors.New("unknown matcher")
	ErrMatchFailed    = errors.New("match failed")
	ErrInvalidParams  = errors.New("invalid matcher params")
)

// Result is the outcome of geometric verification for one image pair.
type Result struct {
	NumInliers int
}

// Matcher scores how well two images verify against each other.
// Implementations must be safe for concurrent use.
type Matcher interface {
	Match(ctx context.Context, img0, img1 string) (Result, error)
}

// Params carries matcher construction parameters as read from configuration.
type Params map[string]any

// Factory builds a matcher from params.
type Factory func(params Params) (Matcher, error)

// Func adapts a plain function to Matcher.
type Func func(ctx context.Context, img0, img1 string) (Result, error)

// Match calls f.
func (f Func) Match(ctx context.Context, img0, img1 string) (Result, error) {
	return f(ctx, img0, img1)
}
