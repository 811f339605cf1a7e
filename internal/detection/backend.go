package detection

import "context"

// Person-counting thresholds shared by both backends.
const (
	ConfThreshold = 0.25
	IoUThreshold  = 0.45
)

// Backend runs one detection pass against a single frame and yields the
// number of persons found. Both implementations honor the same contract so
// the pipeline behaves identically whichever one is configured.
type Backend interface {
	Detect(ctx context.Context, frame []byte, deviceID string) (int, error)
}
