package callback

import "errors"

var (
	ErrInvalidPayload    = errors.New("invalid callback payload")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrUnknownProvider   = errors.New("unknown provider")
)
