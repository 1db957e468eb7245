package apperr

// FetchError is a transport or query failure from the remote article source.
// Its text is shown to the user verbatim.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetch(msg string, err error) *FetchError {
	return &FetchError{Message: msg, Err: err}
}

// EmptyResultError means the query succeeded but returned no rows.
type EmptyResultError struct{}

func (e *EmptyResultError) Error() string {
	return "No articles found in database"
}

// PersistenceOp says which side of the favorites store failed.
type PersistenceOp string

const (
	OpRead  PersistenceOp = "read"
	OpWrite PersistenceOp = "write"
)

// PersistenceError is a failure of the local favorites store. It is never
// fatal and never shown to the user.
type PersistenceError struct {
	Op  PersistenceOp
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	msg := "favorites " + string(e.Op) + " failed"
	if e.Key != "" {
		msg += " for key " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistence(op PersistenceOp, key string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Key: key, Err: err}
}
