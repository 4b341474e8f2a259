package classify

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/hazyhaar/clipkeeper/capture"
)

func textPayload(s string) *capture.Payload {
	return &capture.Payload{Format: capture.FormatText, Data: []byte(s)}
}

func TestClassifyURL(t *testing.T) {
	r, err := Classify(textPayload("https://example.com/path"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != KindURL {
		t.Fatalf("kind = %q, want url", r.Kind)
	}
	if r.Preview != "https://example.com/path" {
		t.Fatalf("preview = %q", r.Preview)
	}
}

func TestClassifyTextNotURL(t *testing.T) {
	cases := []string{
		"visit https://example.com for details", // internal whitespace
		"example.com",                           // no scheme
		"hello world",
		"https://",
	}
	for _, c := range cases {
		r, err := Classify(textPayload(c))
		if err != nil {
			t.Fatalf("%q: %v", c, err)
		}
		if r.Kind != KindText {
			t.Errorf("%q: kind = %q, want text", c, r.Kind)
		}
	}
}

func TestClassifyTextPreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	r, err := Classify(textPayload(long))
	if err != nil {
		t.Fatal(err)
	}
	if len([]rune(r.Preview)) != previewRunes+3 {
		t.Fatalf("preview length = %d, want %d", len([]rune(r.Preview)), previewRunes+3)
	}
	if !strings.HasSuffix(r.Preview, "...") {
		t.Fatalf("preview %q lacks ellipsis", r.Preview)
	}
	if r.Size != 300 {
		t.Fatalf("size = %d, want 300", r.Size)
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	return img
}

func TestClassifyImageNormalizesToPNG(t *testing.T) {
	img := testImage()

	var asPNG, asBMP bytes.Buffer
	if err := png.Encode(&asPNG, img); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&asBMP, img); err != nil {
		t.Fatal(err)
	}

	rp, err := Classify(&capture.Payload{Format: capture.FormatImage, Data: asPNG.Bytes()})
	if err != nil {
		t.Fatal(err)
	}
	rb, err := Classify(&capture.Payload{Format: capture.FormatImage, Data: asBMP.Bytes()})
	if err != nil {
		t.Fatal(err)
	}

	if rp.Kind != KindImage || rb.Kind != KindImage {
		t.Fatalf("kinds = %q, %q, want image", rp.Kind, rb.Kind)
	}
	if rp.Preview != "image 8x6" {
		t.Fatalf("preview = %q, want image 8x6", rp.Preview)
	}
	// Same pixels, different source encodings: identical normalized bytes.
	if !bytes.Equal(rp.Normalized, rb.Normalized) {
		t.Fatal("png and bmp sources normalized to different bytes")
	}
}

func TestClassifyImageMalformed(t *testing.T) {
	_, err := Classify(&capture.Payload{Format: capture.FormatImage, Data: []byte("not an image")})
	if err == nil {
		t.Fatal("expected error for malformed image")
	}
}

func TestClassifyFiles(t *testing.T) {
	p := &capture.Payload{
		Format: capture.FormatFiles,
		Files:  []string{"/home/u/docs/report.pdf", "/tmp/notes.txt"},
	}
	r, err := Classify(p)
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind != KindFileList {
		t.Fatalf("kind = %q, want file_list", r.Kind)
	}
	if r.Preview != "report.pdf, notes.txt" {
		t.Fatalf("preview = %q", r.Preview)
	}
	want := "/home/u/docs/report.pdf\n/tmp/notes.txt"
	if string(r.Normalized) != want {
		t.Fatalf("normalized = %q, want %q", r.Normalized, want)
	}
}

func TestKindTextLike(t *testing.T) {
	for _, k := range []Kind{KindText, KindRichText, KindURL} {
		if !k.TextLike() {
			t.Errorf("%q.TextLike() = false, want true", k)
		}
	}
	for _, k := range []Kind{KindImage, KindFileList} {
		if k.TextLike() {
			t.Errorf("%q.TextLike() = true, want false", k)
		}
	}
}
