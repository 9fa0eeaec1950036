package bgv

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checks via errors.Is().
var (
	// ErrFormat indicates a structurally malformed stream.
	ErrFormat = errors.New("bgv format error")

	// ErrUnsupportedVersion indicates a version outside SupportedVersions.
	ErrUnsupportedVersion = errors.New("unsupported bgv version")

	// ErrCallOrder indicates the parser was driven out of sequence.
	ErrCallOrder = errors.New("bgv parser call out of order")
)

// FormatError reports malformed input at a byte offset.
// Wraps ErrFormat for errors.Is() compatibility.
type FormatError struct {
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s at offset %d: %s", ErrFormat.Error(), e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// UnsupportedVersionError reports a version that failed the allow-list.
// Wraps ErrUnsupportedVersion.
type UnsupportedVersionError struct {
	Version Version
}

func (e *UnsupportedVersionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", ErrUnsupportedVersion.Error(), e.Version)
}

func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

func (p *Parser) formatErr(format string, args ...any) error {
	return &FormatError{Offset: p.d.Offset(), Msg: fmt.Sprintf(format, args...)}
}
