// Package capture abstracts platform clipboard access and provides the
// change-driven poll watcher.
//
// The platform clipboard is modelled as a Source: an opaque change token plus
// per-format readers. The Watcher polls the token at a fixed interval and, on
// change, reads formats in the configured priority order, handing the first
// available payload to its handler. Test doubles implement Source to inject
// arbitrary payload sequences without real platform access.
package capture

import (
	"errors"
	"time"
)

// Format identifies a native clipboard format.
type Format string

const (
	FormatText     Format = "text"
	FormatRichText Format = "rich_text"
	FormatImage    Format = "image"
	FormatFiles    Format = "files"
)

// DefaultPriority is the capture order when multiple formats are available
// for one change event. It is a policy default, not a requirement; the
// Watcher accepts any order.
var DefaultPriority = []Format{FormatFiles, FormatImage, FormatRichText, FormatText}

// Token is an opaque clipboard change token. Two tokens are comparable only
// for inequality: a different value means the clipboard changed since the
// last read. Magnitude and monotonicity carry no meaning.
type Token uint64

// Payload is raw clipboard content in one native format.
type Payload struct {
	Format Format
	Data   []byte   // text, rich text, or encoded image bytes
	Files  []string // populated for FormatFiles
	Time   time.Time
}

// ErrUnavailable signals that the clipboard is transiently held by another
// process. Callers skip the current tick; this is never escalated as a fault.
var ErrUnavailable = errors.New("capture: clipboard unavailable")

// Source is the platform clipboard capability.
//
// Token is a fast, non-blocking read of the change token. Read extracts the
// current content in one format, returning (nil, nil) when that format is not
// present on the clipboard and ErrUnavailable when the clipboard is locked.
type Source interface {
	Token() (Token, error)
	Read(f Format) (*Payload, error)
	Formats() []Format
}
