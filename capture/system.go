// CLAUDE:SUMMARY Real clipboard Source backed by golang.design/x/clipboard — watch goroutines bump an atomic change token.
package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.design/x/clipboard"
)

// SystemSource reads the OS clipboard via golang.design/x/clipboard.
// It supports text and image formats; file lists and rich text are not
// exposed by the underlying library and report as absent.
//
// The library delivers change notifications per format. SystemSource bumps an
// atomic counter on every notification, which serves as the opaque change
// token: the Watcher only ever compares tokens for inequality.
type SystemSource struct {
	token  atomic.Uint64
	cancel context.CancelFunc
}

// NewSystemSource initialises platform clipboard access and starts the
// change-notification listeners. Returns an error when the platform clipboard
// cannot be initialised (e.g. no display on Linux).
func NewSystemSource() (*SystemSource, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("capture: clipboard init: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SystemSource{cancel: cancel}

	for _, f := range []clipboard.Format{clipboard.FmtText, clipboard.FmtImage} {
		ch := clipboard.Watch(ctx, f)
		go func() {
			for range ch {
				s.token.Add(1)
			}
		}()
	}
	return s, nil
}

// Token returns the current change token.
func (s *SystemSource) Token() (Token, error) {
	return Token(s.token.Load()), nil
}

// Read extracts the current clipboard content in format f.
// Returns (nil, nil) when the format is absent.
func (s *SystemSource) Read(f Format) (*Payload, error) {
	var data []byte
	switch f {
	case FormatText:
		data = clipboard.Read(clipboard.FmtText)
	case FormatImage:
		data = clipboard.Read(clipboard.FmtImage)
	default:
		return nil, nil
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &Payload{Format: f, Data: data, Time: time.Now()}, nil
}

// Formats lists the formats this source can read.
func (s *SystemSource) Formats() []Format {
	return []Format{FormatText, FormatImage}
}

// Write places a payload back onto the OS clipboard (restore support).
func (s *SystemSource) Write(f Format, data []byte) error {
	switch f {
	case FormatText:
		clipboard.Write(clipboard.FmtText, data)
	case FormatImage:
		clipboard.Write(clipboard.FmtImage, data)
	default:
		return fmt.Errorf("capture: write: unsupported format %q", f)
	}
	return nil
}

// Close stops the change-notification listeners.
func (s *SystemSource) Close() error {
	s.cancel()
	return nil
}
