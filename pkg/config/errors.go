package config

import "errors"

var (
	ErrParsingConfig = errors.New("config: cannot parse environment")
	ErrInvalidConfig = errors.New("config: validation failed")
	ErrNilPointer    = errors.New("config: nil destination")
)
