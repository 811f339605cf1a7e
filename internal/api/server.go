package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"aula/internal/classroom"
	"aula/internal/pipeline"
	"aula/internal/ws"
)

// New builds the HTTP server: classroom CRUD, the frame upload endpoint,
// the viewer WebSocket handshake and, when mediaDir is non-empty, static
// serving of locally stored images.
func New(store *classroom.Store, orch *pipeline.Orchestrator, hub *ws.Hub, mediaDir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
		AllowCredentials: false,
	}))

	h := &handlers{store: store, orch: orch}

	e.POST("/classrooms", h.createClassroom)
	e.GET("/classrooms", h.listClassrooms)
	e.GET("/classrooms/:classId", h.getClassroom)
	e.PUT("/classrooms/:classId", h.updateClassroom)
	e.DELETE("/classrooms/:classId", h.deleteClassroom)
	e.POST("/classrooms/:classId/image", h.uploadImage)

	e.GET("/ws", echo.WrapHandler(ws.NewHandler(hub)))
	e.GET("/healthz", h.healthz)

	if mediaDir != "" {
		e.Static("/media", mediaDir)
	}

	return e
}
