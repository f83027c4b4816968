package otapack

import (
	"encoding/binary"
	"io"
	"os"
)

// SparseMagic is the Android sparse-image header magic, bytes 3a ff 26 ed on
// disk read little-endian. Sparse images are a compact encoding of a mostly
// empty block device and are not valid input for repacking.
const SparseMagic uint32 = 0xed26ff3a

// IsSparseImage reports whether the file at path begins with the Android
// sparse-image magic. This is a pure probe: any failure to read the first
// four bytes reports false rather than propagating an I/O error.
func IsSparseImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return binary.LittleEndian.Uint32(magic[:]) == SparseMagic
}
