// Package errs defines the error kinds of spec.md §7 and the retry
// helper shared by the RDF/search pools and the Delta Handler.
package errs

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error for disposition purposes, per the §7 table.
type Kind byte

const (
	KindUnknown Kind = iota
	KindTransientRemote
	KindNotFound
	KindAlreadyExists
	KindBadRequest
	KindUnauthorized
	KindConfig
	KindFileTooLarge
	KindFileMissing
	KindQueueDrainFailure
)

var (
	ErrTransientRemote   = errors.New("transient remote failure")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized or groups unresolved")
	ErrConfig            = errors.New("configuration error")
	ErrFileTooLarge      = errors.New("file too large")
	ErrFileMissing       = errors.New("file missing")
	ErrQueueDrainFailure = errors.New("queue drain failure")
)

// kinded wraps a sentinel with a Kind and call-site context via
// pkg/errors, mirroring objects.go's errors.New/wrap usage in the
// teacher.
type kinded struct {
	kind Kind
	err  error
}

func (k *kinded) Error() string { return k.err.Error() }
func (k *kinded) Unwrap() error { return k.err }

// Wrap attaches kind and context to err, using pkg/errors for the
// message chain; the pkg/errors layer records the call-site stack and
// is reachable through Unwrap. The returned error has no Format method
// of its own, so %+v on it prints the message only.
func Wrap(kind Kind, err error, context string) error {
	if err == nil {
		return nil
	}
	return &kinded{kind: kind, err: pkgerrors.Wrap(err, context)}
}

// Classify maps a (possibly wrapped) error back to its §7 disposition.
func Classify(err error) Kind {
	var k *kinded
	for e := err; e != nil; e = errors.Unwrap(e) {
		if kk, ok := e.(*kinded); ok {
			k = kk
			break
		}
	}
	if k != nil {
		return k.kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, ErrFileMissing):
		return KindFileMissing
	case errors.Is(err, ErrQueueDrainFailure):
		return KindQueueDrainFailure
	case errors.Is(err, ErrTransientRemote):
		return KindTransientRemote
	default:
		return KindUnknown
	}
}

// IsTransient reports whether err should be retried under a backoff
// policy rather than surfaced immediately.
func IsTransient(err error) bool {
	return Classify(err) == KindTransientRemote
}
