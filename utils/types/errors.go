package types

import "errors"

// Error taxonomy for the engine. Parameter and liquidity failures are local
// to one opportunity and never propagate as batch-level failures.
var (
	// ErrInvalidParameters rejects bad input synchronously; no state is
	// mutated when it is returned.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrInsufficientLiquidity is a pre-flight failure: the execution never
	// starts and its key is released immediately.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrNoViableRoute means every candidate path failed the liquidity or
	// slippage bound.
	ErrNoViableRoute = errors.New("no viable route")

	// ErrProtocolUnsupported is only ever detected during monitoring and
	// triggers a rebalance rather than a hard failure.
	ErrProtocolUnsupported = errors.New("protocol unsupported")

	// ErrExecutionFailure wraps a failed settlement call.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrPositionNotFound is returned for lookups of unknown position ids.
	ErrPositionNotFound = errors.New("position not found")
)
