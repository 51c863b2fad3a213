package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInactive     = errors.New("account inactive")
	ErrInvalidValue        = errors.New("value must be positive and within the operation limit")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameAccount         = errors.New("origin and destination accounts must differ")
	ErrIdempotencyKeyReuse = errors.New("idempotency key reused with a different request")
)
