package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdfdesk/internal/dispatch"
	"pdfdesk/internal/service"
	"pdfdesk/internal/task"
)

type submitResponse struct {
	TaskID string      `json:"task_id"`
	Status task.Status `json:"status"`
	Failed []string    `json:"failed,omitempty"`
}

type taskResponse struct {
	task.Task
	StartedAt   string `json:"started_at"`
	OutputsURL  string `json:"outputs_url,omitempty"`
	ActiveTotal int    `json:"active_total"`
}

type Options struct {
	AllowedExtensions []string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

type API struct {
	svc     *service.Service
	allowed map[string]struct{}
	metrics http.Handler
}

func NewAPI(svc *service.Service, opts Options) *API {
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = []string{".pdf"}
	}
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[ext] = struct{}{}
	}
	return &API{svc: svc, allowed: allowed, metrics: opts.Metrics}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/merge", a.Merge)
		api.POST("/split", a.Split)
		api.POST("/render", a.Render)
		api.POST("/pagecount", a.PageCount)
		api.POST("/preview", a.Preview)

		api.GET("/tasks", a.ListTasks)
		api.DELETE("/tasks", a.ClearTasks)
		api.GET("/tasks/:id", a.GetTask)
		api.DELETE("/tasks/:id", a.RemoveTask)
		api.POST("/tasks/:id/cancel", a.CancelTask)

		api.GET("/outputs", a.ListOutputs)
		api.GET("/outputs/:id", a.GetOutputs)
		api.DELETE("/outputs/:id", a.RemoveOutputs)
		api.GET("/outputs/:id/:name", a.DownloadOutput)
	}
	if a.metrics != nil {
		router.GET(metricsPath, gin.WrapH(a.metrics))
	}
}

// ListTasks returns every tracked task, optionally filtered by ?status=
func (a *API) ListTasks(c *gin.Context) {
	reg := a.svc.Registry()
	tasks := reg.Tasks()
	if s := c.Query("status"); s != "" {
		status := task.Status(s)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		tasks = reg.GetTasksByStatus(status)
	}
	active := reg.ActiveCount()
	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t, active))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": resp, "active": active})
}

// GetTask returns task status
func (a *API) GetTask(c *gin.Context) {
	id := c.Param("id")
	if found, ok := a.svc.Registry().GetTaskByID(id); ok {
		c.JSON(http.StatusOK, toTaskResponse(found, a.svc.Registry().ActiveCount()))
		return
	}
	log.Warn().Str("task_id", id).Msg("task not found on get")
	c.JSON(http.StatusNotFound, gin.H{"error": task.ErrTaskNotFound.Error()})
}

// RemoveTask drops a task from the registry. Running work is cancelled.
func (a *API) RemoveTask(c *gin.Context) {
	id := c.Param("id")
	if _, ok := a.svc.Registry().GetTaskByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": task.ErrTaskNotFound.Error()})
		return
	}
	a.svc.Registry().RemoveTask(id)
	log.Info().Str("task_id", id).Msg("task removed via api")
	c.Status(http.StatusNoContent)
}

func (a *API) CancelTask(c *gin.Context) {
	id := c.Param("id")
	err := a.svc.Registry().CancelTask(id)
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrTaskTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		found, _ := a.svc.Registry().GetTaskByID(id)
		c.JSON(http.StatusOK, toTaskResponse(found, a.svc.Registry().ActiveCount()))
	}
}

// ClearTasks removes every finished task.
func (a *API) ClearTasks(c *gin.Context) {
	n := a.svc.Registry().ClearCompleted()
	log.Info().Int("removed", n).Msg("cleared finished tasks")
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (a *API) ListOutputs(c *gin.Context) {
	manifests, err := a.svc.Outputs().List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("list outputs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list outputs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": manifests})
}

// GetOutputs returns the manifest of a task's delivered files.
func (a *API) GetOutputs(c *gin.Context) {
	id := c.Param("id")
	m, err := a.svc.Outputs().LoadManifest(c.Request.Context(), id)
	if err != nil {
		a.outputError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (a *API) RemoveOutputs(c *gin.Context) {
	id := c.Param("id")
	if err := a.svc.RemoveOutputs(c.Request.Context(), id); err != nil {
		a.outputError(c, id, err)
		return
	}
	log.Info().Str("task_id", id).Msg("outputs removed")
	c.Status(http.StatusNoContent)
}

// DownloadOutput serves one delivered file
func (a *API) DownloadOutput(c *gin.Context) {
	id, name := c.Param("id"), c.Param("name")
	path, err := a.svc.Outputs().Path(id, name)
	if err != nil {
		a.outputError(c, id, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		a.outputError(c, id, dispatch.ErrNotFound)
		return
	}
	log.Info().Str("task_id", id).Str("path", path).Msg("serving output download")
	c.FileAttachment(path, name)
}

func (a *API) outputError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Str("task_id", id).Err(err).Msg("output access failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "output access failed"})
	}
}

func toTaskResponse(t task.Task, active int) taskResponse {
	resp := taskResponse{
		Task:        t,
		StartedAt:   t.StartTime.UTC().Format(time.RFC3339),
		ActiveTotal: active,
	}
	// Outputs exist only once dispatch finished.
	if t.Status == task.StatusCompleted && len(t.Result) > 0 {
		resp.OutputsURL = "/api/v1/outputs/" + t.ID
	}
	return resp
}
