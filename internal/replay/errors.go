package replay

import "errors"

// Engine construction and run errors. Candle and plan shape errors come from
// the domain package; these cover the run options and loop itself.
var (
	ErrNilExitPlan      = errors.New("exit plan is required")
	ErrEntryQuantity    = errors.New("entry quantity must be positive")
	ErrIncompleteReplay = errors.New("replay ended with an open position")
)
