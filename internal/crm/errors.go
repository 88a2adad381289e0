package crm

import "errors"

var (
	ErrNotFound     = errors.New("crm: not found")
	ErrInvalidInput = errors.New("crm: invalid input")

	// ErrForbidden means the record exists but is owned by someone else.
	// Distinct from ErrNotFound so "exists but not yours" never masquerades
	// as "does not exist".
	ErrForbidden = errors.New("crm: forbidden")
)
