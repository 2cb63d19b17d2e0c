package resample

import "errors"

var (
	ErrInvalidRate   = errors.New("resample: invalid sample rate")
	ErrNotConfigured = errors.New("resample: converter not configured")
	ErrBlockTooLarge = errors.New("resample: block exceeds maximum frame count")
	ErrShortBlock    = errors.New("resample: block holds fewer samples than frame count")
)
