package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmbedding              = errors.New("embedding failed")
	ErrDimensionMismatch      = errors.New("dimension mismatch")
	ErrIndexIO                = errors.New("index snapshot i/o failed")
	ErrGeneration             = errors.New("generation failed")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrAuth                   = errors.New("invalid credentials")
	ErrForbidden              = errors.New("operation not permitted for this role")
	ErrNoDocuments            = errors.New("no documents available")
	ErrNoRelevantContext      = errors.New("no relevant documents found")
	ErrEmptyQuery             = errors.New("please enter a question")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInvalidInput           = errors.New("invalid input")
)

// ExtractionReason says why text could not be obtained from a source.
type ExtractionReason string

const (
	ReasonNoTextFound       ExtractionReason = "NoTextFound"
	ReasonUnsupportedFormat ExtractionReason = "UnsupportedFormat"
	ReasonNetworkError      ExtractionReason = "NetworkError"
)

// ExtractionError is returned once every extraction strategy for a source
// has been exhausted.
type ExtractionError struct {
	Source string
	Reason ExtractionReason
	Err    error
}

func NewExtractionError(source string, reason ExtractionReason, err error) *ExtractionError {
	return &ExtractionError{Source: source, Reason: reason, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Source, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DimensionError reports a vector whose length differs from the index's.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: index expects %d, got %d", e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// Kind names the failure class of err for user-facing reports.
func Kind(err error) string {
	var ee *ExtractionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ee):
		return "ExtractionFailure"
	case errors.Is(err, ErrDimensionMismatch):
		return "DimensionMismatch"
	case errors.Is(err, ErrEmbedding):
		return "EmbeddingFailure"
	case errors.Is(err, ErrIndexIO):
		return "IndexIOFailure"
	case errors.Is(err, ErrGeneration):
		return "GenerationFailure"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "PersistenceUnavailable"
	case errors.Is(err, ErrAuth):
		return "AuthFailure"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrNoDocuments):
		return "NoDocuments"
	case errors.Is(err, ErrNoRelevantContext):
		return "NoRelevantContext"
	case errors.Is(err, ErrEmptyQuery):
		return "EmptyQuery"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	}
	return "InternalError"
}

// UserMessage renders err as a readable line naming the operation and the
// input that failed, without internal detail.
func UserMessage(op, input string, err error) string {
	if err == nil {
		return ""
	}
	var ee *ExtractionError
	switch {
	case errors.As(err, &ee):
		return fmt.Sprintf("%s %q failed: could not extract text (%s)", op, input, ee.Reason)
	case errors.Is(err, ErrEmptyQuery):
		return ErrEmptyQuery.Error()
	case errors.Is(err, ErrNoDocuments):
		return "No documents available. Please upload documents first."
	case errors.Is(err, ErrNoRelevantContext):
		return fmt.Sprintf("No relevant documents found for %q.", input)
	}
	kind := Kind(err)
	if input == "" {
		return fmt.Sprintf("%s failed: %s", op, kind)
	}
	return fmt.Sprintf("%s %q failed: %s", op, input, kind)
}
