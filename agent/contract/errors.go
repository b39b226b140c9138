package contract

import "errors"

var (
	ErrBackendTransport    = errors.New("model backend request failed")
	ErrToolFormatting      = errors.New("model backend rejected tool call formatting")
	ErrUnknownProvider     = errors.New("unknown model provider")
	ErrUnknownCapability   = errors.New("unknown capability")
	ErrMissingArguments    = errors.New("missing required arguments")
	ErrCapabilityExecution = errors.New("capability execution failed")
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrPromptMissing       = errors.New("required prompt is missing")
	ErrValidation          = errors.New("validation failed")
)
