package contract

import "errors"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrModelInvoke  = errors.New("model invoke failed")
	ErrRoundLimit   = errors.New("tool round limit exceeded")
)
