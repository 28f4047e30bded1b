package domain

// Error is an immutable string-backed error type. Unlike errors.New it can
// be declared const, and it compares correctly through wrapped chains with
// errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

var _ error = Error("")

const (
	// ErrNotFound is returned by operations other than Get when no
	// instance exists for the given owner. Get reports absence as a nil
	// instance instead.
	ErrNotFound = Error("instance not found")

	// ErrAlreadyExists is returned by Create when the owner already has
	// an un-deleted instance.
	ErrAlreadyExists = Error("instance already exists")
)
