package otapack

import (
	"io"
	"os"
)

// NewPatchStub is the content of the companion .patch.dat file. Full-image
// OTAs carry no patch commands, but the updater expects the file to exist.
var NewPatchStub = []byte("NEWPATCH")

// Repack converts a raw partition image into the on-disk transfer format:
// a synthetic v4 manifest with a single new command covering the whole image,
// and a payload buffer zero-padded to the next block boundary. The payload is
// what the codec's Compress expects; Reconstruct over the pair reproduces the
// padded image byte for byte.
//
// Sparse images are rejected with ErrRequiresRawImage: repacking needs the
// flat block content, not Android's compact sparse encoding.
func Repack(imagePath string) (*TransferManifest, []byte, error) {
	if IsSparseImage(imagePath) {
		return nil, nil, eMsg(ErrRequiresRawImage, imagePath)
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, eMsg(err, "opening image")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, eMsg(err, "sizing image")
	}

	size := info.Size()
	blocks := uint64((size + BlockSize - 1) / BlockSize)

	payload := make([]byte, blocks*BlockSize)
	if _, err := io.ReadFull(f, payload[:size]); err != nil {
		return nil, nil, eMsg(err, "reading image")
	}

	m := &TransferManifest{
		Version:       RepackVersion,
		TotalBlocks:   blocks,
		StashedBlocks: 0,
		BlockSize:     BlockSize,
		Commands: []Command{{
			Op:     OpNew,
			Name:   "new",
			Ranges: []BlockRange{{Start: 0, End: blocks}},
		}},
	}
	return m, payload, nil
}
