package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// Remote delegates person counting to a remote inference service. The frame
// and the reporting device identifier are forwarded as a multipart request,
// bounded by the client timeout; every failure mode collapses into
// ErrUnavailable so the caller always reaches a terminal state.
type Remote struct {
	endpoint string
	client   *http.Client
}

// remoteResult is the inference service's response to a detection request.
type remoteResult struct {
	Count           int     `json:"count"`
	InferenceTimeMs float32 `json:"inference_time_ms"`
	Device          string  `json:"device"`
}

// NewRemote creates a remote detection backend for the given service
// endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Detect forwards the frame to the inference service and returns its person
// count.
func (r *Remote) Detect(ctx context.Context, frame []byte, deviceID string) (int, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	fw.Write(frame)
	w.WriteField("deviceId", deviceID)
	w.WriteField("conf_threshold", fmt.Sprintf("%.3f", float32(ConfThreshold)))
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/detect", &b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: service returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var result remoteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if result.Count < 0 {
		return 0, fmt.Errorf("%w: malformed response: negative count", ErrUnavailable)
	}

	return result.Count, nil
}
