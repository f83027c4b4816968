package otapack

import (
	"errors"

	"github.com/hashicorp/errwrap"
)

// Error taxonomy for the block-transfer core. Every failure surfaces as one
// of these sentinels, possibly wrapped with context, so callers can route on
// errors.Is. Per-file failures in a batch are isolated by the caller; nothing
// here aborts the process.
var (
	// ErrUnsupportedVersion means the transfer list declares a version
	// outside the 1..4 range this core understands.
	ErrUnsupportedVersion = errors.New("unsupported transfer.list version")

	// ErrTruncatedManifest means the transfer list is missing required
	// header fields.
	ErrTruncatedManifest = errors.New("transfer.list too short")

	// ErrMalformedRanges means a block range token could not be decoded
	// even after every recovery strategy was tried.
	ErrMalformedRanges = errors.New("malformed block range token")

	// ErrPayloadExhausted means a new command asked for more bytes than
	// remain in the block payload. Fatal: the partial output is not a
	// valid image and must be discarded.
	ErrPayloadExhausted = errors.New("block payload ended unexpectedly")

	// ErrRequiresRawImage means repacking was attempted on an Android
	// sparse image instead of a raw one.
	ErrRequiresRawImage = errors.New("input is a sparse image, raw image required")

	// ErrCodecUnavailable means the payload codec was never constructed.
	// An environment problem, not a data problem; never worth retrying
	// the input.
	ErrCodecUnavailable = errors.New("no payload codec configured")

	// ErrCorruptStream means the compression backend rejected the payload.
	ErrCorruptStream = errors.New("corrupt compressed payload")
)

// eMsg wraps an error with a short context message.
func eMsg(err error, msg string) error {
	return errwrap.Wrapf(msg+": {{err}}", err)
}

// tag attaches a sentinel from the error taxonomy to a lower-level cause,
// keeping the cause's text while routing errors.Is to the sentinel.
func tag(sentinel error, cause error) error {
	return errwrap.Wrapf(cause.Error()+": {{err}}", sentinel)
}
