package fetcher

import (
	"errors"
	"fmt"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Kind classifies a fetch failure.
type Kind int

const (
	// SourceUnavailable means nothing was written: the locator was empty or the stream never opened.
	SourceUnavailable Kind = iota
	// TransferInterrupted means the stream failed after bytes were written.
	TransferInterrupted
	// ConversionFailed means the transcoder exited non-zero.
	ConversionFailed
)

func (k Kind) String() string {
	switch k {
	case SourceUnavailable:
		return "source unavailable"
	case TransferInterrupted:
		return "transfer interrupted"
	case ConversionFailed:
		return "conversion failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case SourceUnavailable:
		return shared.ErrSourceUnavailable
	case TransferInterrupted:
		return shared.ErrTransferInterrupted
	default:
		return shared.ErrConversionFailed
	}
}

// Error is returned by every fetch and conversion failure.
type Error struct {
	Kind    Kind
	Locator string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Locator != "" {
		msg += " " + e.Locator
	}
	if e.Path != "" {
		msg += " -> " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the shared sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, locator, path string, err error) *Error {
	return &Error{Kind: kind, Locator: locator, Path: path, Err: err}
}

// KindOf reports the kind of a fetch error. ok is false for errors not produced by this package.
func KindOf(err error) (kind Kind, ok bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
