package table

import "errors"

var (
	// ErrDuplicatePrimaryKey is returned by Insert when an explicit key is already taken.
	ErrDuplicatePrimaryKey = errors.New("primary key is not unique")
	// ErrRecordNotFound is returned by the update verbs when the key does not exist.
	ErrRecordNotFound = errors.New("no row found")
)
