package domain

import "errors"

var (
	ErrMalformedImage     = errors.New("malformed image")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrUnknownEngine      = errors.New("unknown engine")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrNoImageReturned    = errors.New("no image returned")
	ErrFetchFailed        = errors.New("image fetch failed")
	ErrAllEnginesFailed   = errors.New("all engines failed")
	ErrUnknownPackage     = errors.New("unknown credit package")
)
