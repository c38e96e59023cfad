package render

import (
	"errors"
	"fmt"
)

type ErrKind int

const (
	// Transient covers timeouts and connection failures. A transient error
	// ends the current page walk but the source is expected to recover.
	Transient ErrKind = iota
	// Permanent covers non-2xx status codes and explicit block signals.
	Permanent
)

func (k ErrKind) String() string {
	return [...]string{"transient", "permanent"}[k]
}

type FetchError struct {
	Kind       ErrKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch error: url=%s status=%d: %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error: url=%s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newTransient(url string, err error) *FetchError {
	return &FetchError{Kind: Transient, URL: url, Err: err}
}

func newPermanent(url string, statusCode int, err error) *FetchError {
	return &FetchError{Kind: Permanent, URL: url, StatusCode: statusCode, Err: err}
}

func IsPermanent(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Permanent
}

func statusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
