package domain

import "errors"

var (
	// ErrInvalidConfiguration reports a bad chunk size, overlap, top-K or role.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmptyKnowledgeBase is returned when retrieval runs before anything was ingested.
	ErrEmptyKnowledgeBase = errors.New("knowledge base is empty")

	// ErrInterviewFinished is returned once a session reached its turn limit.
	ErrInterviewFinished = errors.New("interview finished")

	// ErrDimensionMismatch is returned by vector stores holding embeddings of
	// a different size than the one written or queried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
