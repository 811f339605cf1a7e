package detection

import "errors"

var (
	// ErrUnavailable indicates the inference backend could not produce a
	// result: unreachable, timed out, non-success status or a malformed
	// response. The pipeline aborts without side effects when it sees this.
	ErrUnavailable = errors.New("detection backend unavailable")

	// ErrInvalidFrame indicates the uploaded bytes are not a decodable image.
	ErrInvalidFrame = errors.New("invalid image")
)
