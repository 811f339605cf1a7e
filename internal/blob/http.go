package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// HTTPStore uploads images to an HTTP image-hosting service.
type HTTPStore struct {
	endpoint string
	folder   string
	client   *http.Client
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// NewHTTPStore creates a store backed by the image host at endpoint.
func NewHTTPStore(endpoint string) *HTTPStore {
	return &HTTPStore{
		endpoint: strings.TrimRight(endpoint, "/"),
		folder:   "smart_classrooms",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Put uploads the image and returns its public URL.
func (s *HTTPStore) Put(ctx context.Context, data []byte) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return "", err
	}
	fw.Write(data)
	w.WriteField("folder", s.folder)
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/upload", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image upload returned status %d", resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("upload response missing secure_url")
	}
	return result.SecureURL, nil
}

// Delete removes a stored image by URL.
func (s *HTTPStore) Delete(ctx context.Context, imageURL string) error {
	publicID := PublicID(imageURL)
	if publicID == "" {
		return fmt.Errorf("cannot derive public id from %q", imageURL)
	}

	body := strings.NewReader(url.Values{"public_id": {publicID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/destroy", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("image delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image delete returned status %d", resp.StatusCode)
	}
	return nil
}

// PublicID derives the host-side object id from an image URL: the last two
// path segments with the file extension stripped.
func PublicID(imageURL string) string {
	parts := strings.Split(imageURL, "/")
	if len(parts) < 2 {
		return ""
	}
	id := strings.Join(parts[len(parts)-2:], "/")
	if ext := path.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return id
}
