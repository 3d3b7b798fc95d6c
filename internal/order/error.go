package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotCanceled   = errors.New("order is not canceled")
)
