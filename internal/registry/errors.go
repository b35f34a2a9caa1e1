package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection marks transport-level failures: the endpoint could not
	// be reached or did not answer. The sync engine treats these as a signal
	// to stop trusting its view of the registry.
	ErrConnection = errors.New("registry: connection failed")

	// ErrUnknown marks a remote error payload that is not one of the
	// expected-absence exceptions.
	ErrUnknown = errors.New("registry: remote error")
)

// RPCError is the error payload the registry returns for a failed call.
type RPCError struct {
	ErrorID string `json:"errorId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("registry: %s (%s): %s", e.Name, e.ErrorID, e.Message)
}

func (e *RPCError) Unwrap() error { return ErrUnknown }

// Remote exceptions that signal an entity is simply not there. Calls that
// hit one of these resolve to an empty result instead of an error.
var notExistsNames = map[string]struct{}{
	"FacilityNotExistsException":  {},
	"GroupNotExistsException":     {},
	"AttributeNotExistsException": {},
	"VoNotExistsException":        {},
}

func isNotExists(name string) bool {
	_, ok := notExistsNames[name]
	return ok
}

// IsAlreadyExists reports whether err is the registry's group-already-exists
// exception. Group creation treats it as success-by-lookup.
func IsAlreadyExists(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Name == "GroupAlreadyExistsException"
}
