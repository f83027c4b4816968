package otapack

import (
	"fmt"
	"io"
)

// ImageSink is the destination an image is reconstructed into. *os.File
// satisfies it. The sink is owned exclusively by the invocation writing it.
type ImageSink interface {
	io.WriterAt
	Truncate(size int64) error
}

// copyBufSize bounds per-range payload reads; ranges can span gigabytes, so
// they are streamed instead of materialized.
const copyBufSize = 1 << 20

// Reconstruct replays the manifest's command stream against out, consuming
// payload strictly in manifest order. The sink is first truncated to exactly
// TotalBlocks*BlockSize bytes, which also satisfies zero and erase commands:
// the destination is already zero-filled, so those opcodes are genuine
// no-ops. Each new command reads its ranges' bytes sequentially from payload
// and writes them at the ranges' block offsets. A payload shorter than the
// commands demand fails with ErrPayloadExhausted; the partially written
// output is not a valid image.
func Reconstruct(m *TransferManifest, payload io.Reader, out ImageSink) error {
	if err := out.Truncate(m.ImageSize()); err != nil {
		return eMsg(err, "presizing output image")
	}

	buf := make([]byte, copyBufSize)
	for _, cmd := range m.Commands {
		if cmd.Op != OpNew {
			// Incremental opcodes (move, stash, bsdiff, imgdiff) are
			// validated at parse time but never applied: this core
			// handles full OTA images only.
			continue
		}
		for _, r := range cmd.Ranges {
			length := int64(r.Blocks()) * int64(m.BlockSize)
			if length <= 0 {
				continue
			}
			off := int64(r.Start) * int64(m.BlockSize)
			if err := copyRange(out, off, payload, length, buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyRange streams exactly length bytes from payload to out at off.
func copyRange(out io.WriterAt, off int64, payload io.Reader, length int64, buf []byte) error {
	for remaining := length; remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(payload, buf[:n])
		if err != nil {
			return eMsg(ErrPayloadExhausted,
				fmt.Sprintf("need %d more bytes", remaining-int64(read)))
		}
		if _, err := out.WriteAt(buf[:read], off); err != nil {
			return eMsg(err, "writing image blocks")
		}
		off += int64(read)
		remaining -= int64(read)
	}
	return nil
}
