package otapack

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestRepack_SyntheticManifest(t *testing.T) {
	raw := make([]byte, 10000) // deliberately not block aligned
	for i := range raw {
		raw[i] = byte(i % 253)
	}

	m, payload, err := Repack(writeImage(t, "vendor.img", raw))
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}

	if m.Version != 4 {
		t.Errorf("Version = %d, want 4", m.Version)
	}
	if m.StashedBlocks != 0 {
		t.Errorf("StashedBlocks = %d, want 0", m.StashedBlocks)
	}
	if m.BlockSize != 4096 {
		t.Errorf("BlockSize = %d, want 4096", m.BlockSize)
	}
	if m.TotalBlocks != 3 {
		t.Errorf("TotalBlocks = %d, want 3", m.TotalBlocks)
	}
	if len(m.Commands) != 1 {
		t.Fatalf("Commands = %d, want 1", len(m.Commands))
	}
	cmd := m.Commands[0]
	if cmd.Op != OpNew || len(cmd.Ranges) != 1 || (cmd.Ranges[0] != BlockRange{0, 3}) {
		t.Errorf("command = %+v, want new (0,3)", cmd)
	}

	if len(payload) != 3*4096 {
		t.Fatalf("payload = %d bytes, want %d", len(payload), 3*4096)
	}
	if !bytes.Equal(payload[:len(raw)], raw) {
		t.Error("payload prefix differs from image content")
	}
	if !bytes.Equal(payload[len(raw):], make([]byte, 3*4096-len(raw))) {
		t.Error("payload padding is not zero")
	}
}

func TestRepack_BlockAlignedImageGetsNoPadding(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 2*4096)
	m, payload, err := Repack(writeImage(t, "dtbo.img", raw))
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}
	if m.TotalBlocks != 2 {
		t.Errorf("TotalBlocks = %d, want 2", m.TotalBlocks)
	}
	if !bytes.Equal(payload, raw) {
		t.Error("aligned image should repack without padding")
	}
}

func TestRepack_RejectsSparse(t *testing.T) {
	sparse := append([]byte{0x3a, 0xff, 0x26, 0xed}, bytes.Repeat([]byte{7}, 128)...)
	_, _, err := Repack(writeImage(t, "sparse.img", sparse))
	if !errors.Is(err, ErrRequiresRawImage) {
		t.Errorf("err = %v, want %v", err, ErrRequiresRawImage)
	}
}

// TestRepack_RoundTrip exercises the whole inverse path: repack, compress,
// decompress, serialize and reparse the manifest, reconstruct. The rebuilt
// image must equal the original padded with zeros to the block boundary.
func TestRepack_RoundTrip(t *testing.T) {
	raw := make([]byte, 3*4096+517)
	for i := range raw {
		raw[i] = byte((i * 31) % 256)
	}

	m, payload, err := Repack(writeImage(t, "system.img", raw))
	if err != nil {
		t.Fatalf("Repack: %v", err)
	}

	codec := NewCodec(DefaultQuality)
	compressed, err := codec.Compress(payload)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	flat, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	var listText bytes.Buffer
	if _, err := m.WriteTo(&listText); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := rebuild(t, listText.String(), flat,
		filepath.Join(t.TempDir(), "rebuilt.img"))

	want := make([]byte, 4*4096)
	copy(want, raw)
	if !bytes.Equal(got, want) {
		t.Error("rebuilt image differs from zero-padded original")
	}
}
