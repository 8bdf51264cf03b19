package cli

import "errors"

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
	ErrEmptyPath          = errors.New("path cannot be empty")
)

// Usage errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgs           = errors.New("wrong number of arguments")
	ErrNoPack         = errors.New("no pack configured")
	ErrNoProject      = errors.New("both --bp and --rp are required")
)
