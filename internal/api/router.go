package api

import (
	"github.com/Blameying/M3U8-Downloader/internal/engine"
	"github.com/Blameying/M3U8-Downloader/internal/infra/logger"
	"github.com/Blameying/M3U8-Downloader/internal/store"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// NewServer builds the status server exposing the live progress of the
// current run and the run journal. It is only started when a status address
// is configured.
func NewServer(dl *engine.Downloader, journal *store.Journal, log *logger.Logger) *echo.Echo {
	e := echo.New()

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	ctrl := &StatusController{Engine: dl, Journal: journal}

	e.GET("/status", ctrl.HandleStatus)
	e.GET("/runs/:id", ctrl.HandleRun)

	return e
}
