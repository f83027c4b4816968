package otapack

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseTransferList parses the text form of a transfer list into a manifest.
//
// Line 0 is the format version (1..4), line 1 the total block count. The
// header tail depends on the version: v3 adds a block size, v4 adds a stashed
// block count and then a block size. A missing, zero or unparsable block size
// falls back to BlockSize. Informational lines between the header and the
// first command are skipped; command lines with unrecognized keywords are
// preserved opaquely for forward compatibility with manifest dialects this
// core does not execute.
func ParseTransferList(text string) (*TransferManifest, error) {
	lines := contentLines(text)
	if len(lines) < 2 {
		return nil, eMsg(ErrTruncatedManifest, "need version and block count")
	}

	version, err := strconv.Atoi(lines[0])
	if err != nil || version < MinVersion || version > MaxVersion {
		return nil, eMsg(ErrUnsupportedVersion, strconv.Quote(lines[0]))
	}

	total, err := strconv.ParseUint(lines[1], 10, 64)
	if err != nil {
		return nil, eMsg(ErrTruncatedManifest, "bad total block count "+strconv.Quote(lines[1]))
	}

	m := &TransferManifest{
		Version:     version,
		TotalBlocks: total,
		BlockSize:   BlockSize,
	}

	idx := 2
	switch version {
	case 3:
		if idx < len(lines) {
			m.BlockSize = parseBlockSize(lines[idx])
		}
		idx++
	case 4:
		if idx < len(lines) {
			if stashed, err := strconv.ParseUint(lines[idx], 10, 64); err == nil {
				m.StashedBlocks = stashed
			}
		}
		idx++
		if idx < len(lines) {
			m.BlockSize = parseBlockSize(lines[idx])
		}
		idx++
	}

	// Some manifests carry extra informational lines between the header
	// and the first command; advance until a recognized opcode keyword.
	for idx < len(lines) {
		name, _, _ := strings.Cut(lines[idx], " ")
		if _, ok := opcodeNames[strings.ToLower(name)]; ok {
			break
		}
		idx++
	}

	for _, line := range lines[idx:] {
		cmd, err := parseCommand(line)
		if err != nil {
			return nil, err
		}
		m.Commands = append(m.Commands, cmd)
	}
	return m, nil
}

// contentLines splits the list into trimmed, non-blank lines.
func contentLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseBlockSize applies the header fallback rule: anything missing,
// unparsable or non-positive means the default block size.
func parseBlockSize(field string) uint32 {
	bs, err := strconv.ParseUint(field, 10, 32)
	if err != nil || bs == 0 {
		return BlockSize
	}
	return uint32(bs)
}

// parseCommand splits one command line into its lower-cased keyword and
// argument remainder. Range tokens anywhere in the remainder are decoded and
// validated; comma-less fields (hashes and offsets carried by incremental
// opcodes) are kept only as raw text.
func parseCommand(line string) (Command, error) {
	name, args, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)

	op, ok := opcodeNames[name]
	if !ok {
		return Command{Op: OpUnknown, Name: name, Args: args}, nil
	}

	cmd := Command{Op: op, Name: name, Args: args}
	for _, field := range strings.Fields(args) {
		if !strings.Contains(field, ",") {
			continue
		}
		ranges, err := ParseRangeToken(field)
		if err != nil {
			return Command{}, eMsg(err, name+" command")
		}
		cmd.Ranges = append(cmd.Ranges, ranges...)
	}
	if op == OpNew && len(cmd.Ranges) == 0 {
		return Command{}, eMsg(ErrMalformedRanges, "new command without ranges")
	}
	return cmd, nil
}

// rangeLadder is the ordered list of recovery strategies applied to a range
// token. Malformed tokens are common in the wild (truncated counts, trailing
// commas, off-by-one counts), so a count mismatch is not immediately fatal:
// each rung nominates a candidate slice of integers to pair up and the first
// candidate that forms valid pairs wins. The order is fixed, so the same
// input always resolves the same way.
var rangeLadder = []func(nums []uint64) []uint64{
	// The declared count matches the values that follow it.
	func(nums []uint64) []uint64 {
		if vals := nums[1:]; uint64(len(vals)) == nums[0] {
			return vals
		}
		return nil
	},
	// The count disagrees but every token pairs up, count included.
	func(nums []uint64) []uint64 { return nums },
	// Treat the first token as a bogus count and pair the rest.
	func(nums []uint64) []uint64 { return nums[1:] },
	// Drop a dangling trailing token and pair the rest.
	func(nums []uint64) []uint64 { return nums[:len(nums)-1] },
}

// ParseRangeToken decodes the `<count>,<v1>,...,<vN>` wire form of a block
// range list, where count declares the number of integers that follow and
// the integers pair into (start, end). Tokens whose count disagrees with
// their contents are recovered through rangeLadder; tokens that defeat every
// rung fail with ErrMalformedRanges.
func ParseRangeToken(token string) ([]BlockRange, error) {
	fields := strings.FieldsFunc(token, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, eMsg(ErrMalformedRanges, "empty range token")
	}

	nums := make([]uint64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, eMsg(ErrMalformedRanges, "non-numeric token "+strconv.Quote(f))
		}
		nums[i] = n
	}

	// A declared count of zero with nothing after it is consistent: an
	// empty range list, not a malformed token.
	if len(nums) == 1 && nums[0] == 0 {
		return []BlockRange{}, nil
	}

	for _, rung := range rangeLadder {
		if ranges, ok := pairRanges(rung(nums)); ok {
			return ranges, nil
		}
	}
	return nil, eMsg(ErrMalformedRanges, token)
}

// pairRanges folds candidate integers into (start, end) pairs, rejecting
// candidates that are empty, odd-length or inverted. A rejected candidate
// falls through to the next recovery rung.
func pairRanges(nums []uint64) ([]BlockRange, bool) {
	if len(nums) == 0 || len(nums)%2 != 0 {
		return nil, false
	}
	ranges := make([]BlockRange, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		if nums[i+1] < nums[i] {
			return nil, false
		}
		ranges = append(ranges, BlockRange{Start: nums[i], End: nums[i+1]})
	}
	return ranges, true
}
