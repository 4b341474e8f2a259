// CLAUDE:SUMMARY Content kind classification for clipboard payloads — URL detection, previews, PNG normalization of images.
// Package classify assigns a content kind to raw clipboard payloads and
// derives the metadata the pipeline persists: preview text, byte size, and a
// normalized payload suitable for fingerprinting.
//
// Classification is pure: it never touches the store or the platform
// clipboard, and the only failure path is a malformed payload (returned as an
// error the pipeline treats as a skip, never as a fault).
package classify

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	_ "image/gif"  // register decoders: clipboard images arrive in
	_ "image/jpeg" // whatever encoding the source application used
	"golang.org/x/image/bmp"

	"github.com/hazyhaar/clipkeeper/capture"
)

// Kind is the classified content type of a stored record.
type Kind string

const (
	KindText     Kind = "text"
	KindRichText Kind = "rich_text"
	KindImage    Kind = "image"
	KindFileList Kind = "file_list"
	KindURL      Kind = "url"
)

// Kinds lists all valid kinds.
var Kinds = []Kind{KindText, KindRichText, KindImage, KindFileList, KindURL}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindRichText, KindImage, KindFileList, KindURL:
		return true
	}
	return false
}

// TextLike reports whether payloads of this kind are scanned by the
// sensitivity filter. Images and file lists are never pattern-scanned.
func (k Kind) TextLike() bool {
	return k == KindText || k == KindRichText || k == KindURL
}

const previewRunes = 100

// Result is the outcome of classifying one payload.
type Result struct {
	Kind    Kind
	Preview string
	Size    int64
	// Normalized is the canonical payload: what gets fingerprinted and
	// persisted. For images this is always PNG, independent of the source
	// encoding, so re-copies of the same pixels fingerprint identically.
	Normalized []byte
}

// Classify inspects a raw clipboard payload and assigns its kind and derived
// metadata. An error means the payload is malformed or unreadable; callers
// treat that as a skip.
func Classify(p *capture.Payload) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("classify: nil payload")
	}

	switch p.Format {
	case capture.FormatText:
		return classifyText(p.Data), nil
	case capture.FormatRichText:
		return &Result{
			Kind:       KindRichText,
			Preview:    truncate(string(p.Data)),
			Size:       int64(len(p.Data)),
			Normalized: p.Data,
		}, nil
	case capture.FormatImage:
		return classifyImage(p.Data)
	case capture.FormatFiles:
		return classifyFiles(p.Files)
	default:
		return nil, fmt.Errorf("classify: unsupported format %q", p.Format)
	}
}

func classifyText(data []byte) *Result {
	text := string(data)
	kind := KindText
	if IsURL(text) {
		kind = KindURL
	}
	return &Result{
		Kind:       kind,
		Preview:    truncate(text),
		Size:       int64(len(data)),
		Normalized: data,
	}
}

func classifyImage(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("classify: empty image payload")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// BMP/DIB is common on Windows clipboards but not registered by
		// image.Decode's magic sniffing for headerless DIBs.
		img, err = bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("classify: decode image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("classify: encode png: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Kind:       KindImage,
		Preview:    fmt.Sprintf("image %dx%d", b.Dx(), b.Dy()),
		Size:       int64(buf.Len()),
		Normalized: buf.Bytes(),
	}, nil
}

func classifyFiles(files []string) (*Result, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("classify: empty file list")
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	// The path list itself is the payload; restore hands the paths back.
	data := []byte(strings.Join(files, "\n"))
	return &Result{
		Kind:       KindFileList,
		Preview:    truncate(strings.Join(names, ", ")),
		Size:       int64(len(data)),
		Normalized: data,
	}, nil
}

// IsURL reports whether text is a single URL: a parseable scheme + host with
// no internal whitespace.
func IsURL(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
