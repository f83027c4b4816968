package otapack

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	gzip "github.com/klauspost/pgzip"
)

// Payload compression qualities. The default matches the reference encoder;
// anything above MaxQuality is clamped.
const (
	DefaultQuality = 6
	MaxQuality     = brotli.BestCompression
)

// gzipMagic marks the gzip payload dialect; Brotli itself has no magic.
var gzipMagic = []byte{0x1f, 0x8b}

// Codec compresses and decompresses block payloads. A Codec must be built
// with NewCodec and passed explicitly by the caller; the zero value (and a
// nil pointer) reports ErrCodecUnavailable from every operation.
type Codec struct {
	quality int
	ready   bool
}

// NewCodec returns a codec that compresses at the given quality, clamped to
// the 0..MaxQuality range. Quality trades CPU time for output size.
func NewCodec(quality int) *Codec {
	if quality < 0 {
		quality = 0
	}
	if quality > MaxQuality {
		quality = MaxQuality
	}
	return &Codec{quality: quality, ready: true}
}

func (c *Codec) available() error {
	if c == nil || !c.ready {
		return ErrCodecUnavailable
	}
	return nil
}

// Decompress expands a compressed block payload into a flat buffer in one
// shot. Payloads carrying the gzip magic are inflated as gzip; everything
// else is treated as a raw Brotli stream. Backend rejection surfaces as
// ErrCorruptStream.
func (c *Codec) Decompress(compressed []byte) ([]byte, error) {
	if err := c.available(); err != nil {
		return nil, err
	}
	// The brotli reader treats a zero-byte stream as a clean EOF, but an
	// empty payload is not a valid stream in any dialect.
	if len(compressed) == 0 {
		return nil, eMsg(ErrCorruptStream, "empty payload")
	}

	if bytes.HasPrefix(compressed, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, tag(ErrCorruptStream, err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, tag(ErrCorruptStream, err)
		}
		return raw, nil
	}

	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, tag(ErrCorruptStream, err)
	}
	return raw, nil
}

// Compress produces a Brotli stream from a flat payload buffer in one shot.
// There is no byte-level progress signal from the backend; callers wanting
// feedback should report around the call.
func (c *Codec) Compress(raw []byte) ([]byte, error) {
	if err := c.available(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.quality)
	if _, err := w.Write(raw); err != nil {
		return nil, eMsg(err, "compressing payload")
	}
	if err := w.Close(); err != nil {
		return nil, eMsg(err, "finishing payload compression")
	}
	return buf.Bytes(), nil
}

// Quality reports the compression quality the codec was built with.
func (c *Codec) Quality() int {
	if c == nil {
		return 0
	}
	return c.quality
}
