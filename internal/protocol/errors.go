package protocol

import "errors"

// Errors shared across the reader and the pipeline.
var (
	// ErrMissingText marks a request line without a usable "text" field.
	ErrMissingText = errors.New("missing required field: text")

	// ErrUnsupportedFormat marks a request naming a format the pipeline
	// cannot produce.
	ErrUnsupportedFormat = errors.New("unsupported format (opus|wav|pcm)")
)
