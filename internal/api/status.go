package api

import (
	"net/http"

	"github.com/Blameying/M3U8-Downloader/internal/engine"
	"github.com/Blameying/M3U8-Downloader/internal/store"
	"github.com/labstack/echo/v5"
)

type StatusController struct {
	Engine  *engine.Downloader
	Journal *store.Journal
}

type statusResponse struct {
	State    string           `json:"state"`
	RunID    string           `json:"run_id,omitempty"`
	Progress *engine.Snapshot `json:"progress,omitempty"`
}

// HandleStatus reports the progress of the run in flight, or "idle".
func (ctrl *StatusController) HandleStatus(c *echo.Context) error {
	id, snap, ok := ctrl.Engine.Snapshot()
	if !ok {
		return c.JSON(http.StatusOK, statusResponse{State: "idle"})
	}

	return c.JSON(http.StatusOK, statusResponse{
		State:    "downloading",
		RunID:    id,
		Progress: &snap,
	})
}

// HandleRun serves one journal entry, including its failed segments.
func (ctrl *StatusController) HandleRun(c *echo.Context) error {
	if ctrl.Journal == nil {
		return c.String(http.StatusServiceUnavailable, "run journal is disabled")
	}

	id := c.Param("id")
	rec, err := ctrl.Journal.GetRun(id)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if rec == nil {
		return c.String(http.StatusNotFound, "no such run")
	}

	fails, err := ctrl.Journal.Failures(id)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"run":      rec,
		"failures": fails,
	})
}
