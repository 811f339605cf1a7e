package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"aula/internal/classroom"
	"aula/internal/detection"
	"aula/internal/pipeline"
)

// analyticsUnavailableMsg is the in-band failure contract for inference
// backend outages: the response carries success=false over a 200 status.
const analyticsUnavailableMsg = "image analytics server currently unavailable"

// handlers serve the classroom CRUD surface directly from the store; the
// direct-update and image paths go through the pipeline.
type handlers struct {
	store *classroom.Store
	orch  *pipeline.Orchestrator
}

func (h *handlers) createClassroom(c echo.Context) error {
	var req classroom.NewClassroom
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return httpError(err)
	}

	created, err := h.store.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, ok("classroom created", map[string]any{"id": created.ID}))
}

func (h *handlers) listClassrooms(c echo.Context) error {
	classrooms, err := h.store.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ok("ok", map[string]any{"classrooms": classrooms}))
}

func (h *handlers) getClassroom(c echo.Context) error {
	room, err := h.store.GetByClassID(c.Request().Context(), c.Param("classId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ok("ok", map[string]any{"classroom": room}))
}

func (h *handlers) updateClassroom(c echo.Context) error {
	var req classroom.Update
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.orch.UpdateClassroom(c.Request().Context(), c.Param("classId"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ok("updated", map[string]any{"classroom": updated}))
}

func (h *handlers) deleteClassroom(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("classId")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ok("deleted", nil))
}

func (h *handlers) uploadImage(c echo.Context) error {
	deviceID := c.FormValue("deviceId")
	if deviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "deviceId is required")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	defer f.Close()
	frame, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	updated, err := h.orch.ProcessFrame(c.Request().Context(), c.Param("classId"), deviceID, frame)
	if err != nil {
		if errors.Is(err, detection.ErrUnavailable) {
			return c.JSON(http.StatusOK, Response{Success: false, Message: analyticsUnavailableMsg, Data: nil})
		}
		return httpError(err)
	}

	return c.JSON(http.StatusOK, ok("classroom image updated", map[string]any{"classroom": updated}))
}

func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "aula",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// httpError maps domain errors to transport statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, classroom.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "classroom not found")
	case errors.Is(err, classroom.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "classId already exists")
	case errors.Is(err, classroom.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
