package domain

import "errors"

// Sentinel errors returned by the scoring and case layers. Callers branch
// with errors.Is; wrapped messages carry the transaction or case in play.
var (
	// ErrInsufficientSignal rejects a transaction whose every module
	// score is absent. Nothing to weigh means nothing to score.
	ErrInsufficientSignal = errors.New("insufficient signal: no module scores present")

	// ErrInvalidWeights indicates a weight configuration that is
	// negative, NaN, or sums to zero. Fatal at startup.
	ErrInvalidWeights = errors.New("invalid module weights")

	// ErrInvalidThresholds indicates risk thresholds that are not
	// strictly ascending or fall outside [0,100]. Fatal at startup.
	ErrInvalidThresholds = errors.New("invalid risk thresholds")

	// ErrBadTransition indicates a case state change the lifecycle does
	// not allow, such as closing a case that was never claimed.
	ErrBadTransition = errors.New("illegal case transition")

	// ErrNotFound is returned by repositories and caches when the
	// requested entity does not exist for the tenant.
	ErrNotFound = errors.New("not found")

	// ErrSuperseded indicates a compare-and-update on a case lost the
	// race because the case status changed underneath it.
	ErrSuperseded = errors.New("case status changed concurrently")
)
