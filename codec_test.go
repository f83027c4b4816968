package otapack

import (
	"bytes"
	"errors"
	"testing"

	gzip "github.com/klauspost/pgzip"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(DefaultQuality)

	raw := bytes.Repeat([]byte("block payload "), 4096)
	compressed, err := codec.Compress(raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(raw) {
		t.Errorf("compressed %d bytes, want smaller than %d for repetitive input",
			len(compressed), len(raw))
	}

	got, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("round trip lost data: got %d bytes, want %d", len(got), len(raw))
	}
}

func TestCodecGzipDialect(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab, 0xcd, 0x00, 0x11}, 9000)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	got, err := NewCodec(DefaultQuality).Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("gzip dialect lost data: got %d bytes, want %d", len(got), len(raw))
	}
}

func TestCodecUnavailable(t *testing.T) {
	var nilCodec *Codec
	for name, codec := range map[string]*Codec{
		"nil pointer": nilCodec,
		"zero value":  new(Codec),
	} {
		if _, err := codec.Decompress([]byte{1}); !errors.Is(err, ErrCodecUnavailable) {
			t.Errorf("%s Decompress err = %v, want %v", name, err, ErrCodecUnavailable)
		}
		if _, err := codec.Compress([]byte{1}); !errors.Is(err, ErrCodecUnavailable) {
			t.Errorf("%s Compress err = %v, want %v", name, err, ErrCodecUnavailable)
		}
	}
}

func TestCodecCorruptStream(t *testing.T) {
	codec := NewCodec(DefaultQuality)
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty input", nil},
		{"truncated gzip header", []byte{0x1f, 0x8b}},
		{"gzip magic with garbage", []byte{0x1f, 0x8b, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decompress(tt.input); !errors.Is(err, ErrCorruptStream) {
				t.Errorf("err = %v, want %v", err, ErrCorruptStream)
			}
		})
	}
}

func TestCodecQualityClamped(t *testing.T) {
	if q := NewCodec(99).Quality(); q != MaxQuality {
		t.Errorf("Quality = %d, want clamped to %d", q, MaxQuality)
	}
	if q := NewCodec(-5).Quality(); q != 0 {
		t.Errorf("Quality = %d, want clamped to 0", q)
	}

	// The extremes must still round-trip.
	raw := bytes.Repeat([]byte("padding"), 2048)
	for _, codec := range []*Codec{NewCodec(0), NewCodec(MaxQuality)} {
		compressed, err := codec.Compress(raw)
		if err != nil {
			t.Fatalf("Compress at quality %d: %v", codec.Quality(), err)
		}
		got, err := codec.Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress at quality %d: %v", codec.Quality(), err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("quality %d round trip lost data", codec.Quality())
		}
	}
}
