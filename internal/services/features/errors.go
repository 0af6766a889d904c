package features

import "errors"

// ErrInsufficientData is returned when the price history is shorter than the
// requested lookback window. Fatal to the call, not to the process.
var ErrInsufficientData = errors.New("insufficient price history for lookback window")
