package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aula/internal/alert"
	"aula/internal/blob"
	"aula/internal/classroom"
	"aula/internal/detection"
	"aula/internal/pipeline"
	"aula/internal/ws"
)

// stubBackend lets each test pick the inference outcome.
type stubBackend struct {
	count int
	err   error
}

func (s *stubBackend) Detect(ctx context.Context, frame []byte, deviceID string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.count, nil
}

type testEnv struct {
	e       *echo.Echo
	store   *classroom.Store
	backend *stubBackend
	alerts  *alert.RecorderDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := classroom.NewStore(filepath.Join(t.TempDir(), "aula.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())

	blobs, err := blob.NewFSStore(t.TempDir(), "http://localhost:8080/media")
	require.NoError(t, err)

	backend := &stubBackend{}
	alerts := alert.NewRecorderDispatcher()
	hub := ws.NewHub()
	orch := pipeline.New(store, blobs, backend, hub, alerts, time.UTC)

	return &testEnv{
		e:       New(store, orch, hub, ""),
		store:   store,
		backend: backend,
		alerts:  alerts,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var resp Response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (env *testEnv) create(t *testing.T, classID, deviceID string, capacity int) {
	t.Helper()
	rec, resp := env.do(t, http.MethodPost, "/classrooms", classroom.NewClassroom{
		ClassID:  classID,
		Name:     "Engineering Lecture Theatre 1",
		DeviceID: deviceID,
		Capacity: capacity,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (env *testEnv) upload(t *testing.T, classID, deviceID string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("deviceId", deviceID))
	fw, err := mw.CreateFormFile("file", "frame.png")
	require.NoError(t, err)
	_, err = fw.Write(pngFrame(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/classrooms/%s/image", classID), &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetClassroom(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	rec, resp := env.do(t, http.MethodGet, "/classrooms/ELT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	var data struct {
		Classroom classroom.Classroom `json:"classroom"`
	}
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &data))

	assert.Equal(t, "ELT", data.Classroom.ClassID)
	assert.Equal(t, "dev-00123", data.Classroom.DeviceID)
	assert.Equal(t, 150, data.Classroom.Capacity)
	assert.Equal(t, 0, data.Classroom.Occupancy)
	assert.Nil(t, data.Classroom.LatestImage)
	assert.NotEmpty(t, data.Classroom.ID)
}

func TestCreateDuplicateClassID(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	rec, _ := env.do(t, http.MethodPost, "/classrooms", classroom.NewClassroom{
		ClassID: "ELT", Name: "Other", DeviceID: "dev-2", Capacity: 10,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateMissingDeviceID(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/classrooms", classroom.NewClassroom{
		ClassID: "ELT", Name: "No Device", Capacity: 10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownClassroom(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/classrooms/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListClassrooms(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-1", 150)
	env.create(t, "LAB", "dev-2", 25)

	rec, resp := env.do(t, http.MethodGet, "/classrooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Classrooms []classroom.Classroom `json:"classrooms"`
	}
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Len(t, data.Classrooms, 2)
}

func TestUpdateOverCapacitySendsAlert(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	occ := 160
	rec, resp := env.do(t, http.MethodPut, "/classrooms/ELT", classroom.Update{Occupancy: &occ})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	tasks := env.alerts.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "ELT", tasks[0].ClassID)
	assert.Equal(t, 160, tasks[0].Occupancy)
	assert.Equal(t, 150, tasks[0].Capacity)
}

func TestDeleteClassroom(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	rec, resp := env.do(t, http.MethodDelete, "/classrooms/ELT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	rec, _ = env.do(t, http.MethodGet, "/classrooms/ELT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)
	env.backend.count = 3

	rec := env.upload(t, "ELT", "dev-00123")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	room, err := env.store.GetByClassID(context.Background(), "ELT")
	require.NoError(t, err)
	assert.Equal(t, 3, room.Occupancy)
	require.NotNil(t, room.LatestImage)
	assert.Contains(t, *room.LatestImage, "http://localhost:8080/media")
}

func TestUploadImageDeviceMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	rec := env.upload(t, "ELT", "wrong-device")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	room, err := env.store.GetByClassID(context.Background(), "ELT")
	require.NoError(t, err)
	assert.Equal(t, 0, room.Occupancy)
	assert.Nil(t, room.LatestImage)
}

func TestUploadImageBackendUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)
	env.backend.err = fmt.Errorf("%w: connection refused", detection.ErrUnavailable)

	rec := env.upload(t, "ELT", "dev-00123")

	// Contract: the outage is an in-band failure, not a transport error.
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "image analytics server currently unavailable", resp.Message)
	assert.Nil(t, resp.Data)

	room, err := env.store.GetByClassID(context.Background(), "ELT")
	require.NoError(t, err)
	assert.Equal(t, 0, room.Occupancy)
	assert.Nil(t, room.LatestImage)
}

func TestUploadImageMissingDeviceID(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "ELT", "dev-00123", 150)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "frame.png")
	require.NoError(t, err)
	_, err = fw.Write(pngFrame(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/classrooms/ELT/image", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "aula", body["service"])

	_, err := time.Parse(time.RFC3339, body["timestamp"])
	assert.NoError(t, err)
}
