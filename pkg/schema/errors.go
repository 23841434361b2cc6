package schema

import "errors"

var (
	// ErrUnknownField is returned when a field name is not part of the schema.
	ErrUnknownField = errors.New("unknown field name")
	// ErrAmbiguousPrimaryKey is returned when more than one field is marked as primary key.
	ErrAmbiguousPrimaryKey = errors.New("more than one primary key specified")
	// ErrMissingPrimaryKey is returned when an operation needs a primary key and the schema has none.
	ErrMissingPrimaryKey = errors.New("primary key is not specified")
	// ErrRowTooLong is returned when supplied values exceed the column count.
	ErrRowTooLong = errors.New("values length is greater than columns length")
	// ErrInvalidSchema covers the other structural declaration mistakes.
	ErrInvalidSchema = errors.New("invalid schema")
)
