package otapack

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Transfer-list format constants
const (
	// BlockSize is the block size assumed when a manifest does not carry
	// one, and the fixed size used when repacking.
	BlockSize = 4096

	MinVersion = 1
	MaxVersion = 4

	// RepackVersion is the manifest version emitted for repacked images.
	RepackVersion = 4
)

// Opcode identifies a transfer-list command.
type Opcode int

// Transfer-list opcodes. Only OpNew consumes payload bytes; zero and erase
// are satisfied by the zero-filled output, and the incremental opcodes are
// parsed for validation but never applied (this core handles full OTA images
// only, not binary patches).
const (
	OpNew Opcode = iota
	OpZero
	OpMove
	OpStash
	OpFree
	OpAppend
	OpBsdiff
	OpImgdiff
	// OpUnknown preserves commands from manifest dialects this core does
	// not execute, instead of rejecting the whole list.
	OpUnknown
)

var opcodeNames = map[string]Opcode{
	"new":     OpNew,
	"zero":    OpZero,
	"erase":   OpZero,
	"move":    OpMove,
	"stash":   OpStash,
	"free":    OpFree,
	"append":  OpAppend,
	"bsdiff":  OpBsdiff,
	"imgdiff": OpImgdiff,
}

func (o Opcode) String() string {
	switch o {
	case OpNew:
		return "new"
	case OpZero:
		return "zero"
	case OpMove:
		return "move"
	case OpStash:
		return "stash"
	case OpFree:
		return "free"
	case OpAppend:
		return "append"
	case OpBsdiff:
		return "bsdiff"
	case OpImgdiff:
		return "imgdiff"
	default:
		return "unknown"
	}
}

// BlockRange addresses the half-open block span [Start, End). Byte offset is
// Start*blockSize, byte length (End-Start)*blockSize. End == Start is a
// zero-length no-op, not an error.
type BlockRange struct {
	Start uint64
	End   uint64
}

// Blocks returns the number of blocks the range covers.
func (r BlockRange) Blocks() uint64 {
	return r.End - r.Start
}

// Command is one line of a transfer list: an opcode plus its block ranges.
// Name keeps the keyword as written so opaque dialect commands survive a
// parse/serialize round trip; Args keeps the raw argument remainder.
type Command struct {
	Op     Opcode
	Name   string
	Ranges []BlockRange
	Args   string
}

// TransferManifest is the parsed form of a transfer list: the versioned
// header plus the ordered command stream. Manifests are transient values,
// built per invocation and never mutated concurrently.
type TransferManifest struct {
	Version       int
	TotalBlocks   uint64
	StashedBlocks uint64 // v4 header field, informational only
	BlockSize     uint32
	Commands      []Command
}

// ImageSize returns the exact byte size of the reconstructed image.
func (m *TransferManifest) ImageSize() int64 {
	return int64(m.TotalBlocks) * int64(m.BlockSize)
}

// WriteTo serializes the manifest in transfer-list text form. The header
// layout follows the manifest's declared version. Commands that carry raw
// argument text (parsed commands always do) are emitted verbatim, keeping
// hashes and token layout intact; writer-constructed commands encode their
// ranges with the same grammar the parser accepts, so emitted lists
// round-trip either way.
func (m *TransferManifest) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n%d\n", m.Version, m.TotalBlocks)
	switch {
	case m.Version == 3:
		fmt.Fprintf(&b, "%d\n", m.BlockSize)
	case m.Version >= 4:
		fmt.Fprintf(&b, "%d\n%d\n", m.StashedBlocks, m.BlockSize)
	}

	for _, cmd := range m.Commands {
		switch {
		case cmd.Args != "":
			fmt.Fprintf(&b, "%s %s\n", cmd.Name, cmd.Args)
		case len(cmd.Ranges) > 0:
			fmt.Fprintf(&b, "%s %s\n", cmd.Name, rangeToken(cmd.Ranges))
		default:
			fmt.Fprintf(&b, "%s\n", cmd.Name)
		}
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// rangeToken renders ranges in the wire grammar: the count of integers that
// follow, then the start,end pairs, all comma-separated.
func rangeToken(ranges []BlockRange) string {
	parts := make([]string, 0, len(ranges)*2+1)
	parts = append(parts, strconv.Itoa(len(ranges)*2))
	for _, r := range ranges {
		parts = append(parts,
			strconv.FormatUint(r.Start, 10),
			strconv.FormatUint(r.End, 10))
	}
	return strings.Join(parts, ",")
}
