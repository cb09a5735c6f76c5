package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/dipgate/internal/scheduler"
)

// JobRunner is the maintenance scheduler as seen by the operator API.
type JobRunner interface {
	Jobs() []string
	NextRun(name string) *time.Time
	RunNow(ctx context.Context, name string) error
}

// TaskStatusReader looks up queued task state.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// MaintenanceController lets the operator inspect and trigger housekeeping
// jobs.
type MaintenanceController struct {
	jobs   JobRunner
	status TaskStatusReader
}

func NewMaintenanceController(jobs JobRunner, status TaskStatusReader) *MaintenanceController {
	return &MaintenanceController{jobs: jobs, status: status}
}

// JobInfo describes one housekeeping job.
type JobInfo struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// ListJobs handles GET /api/maintenance/jobs
func (mc *MaintenanceController) ListJobs(c *gin.Context) {
	names := mc.jobs.Jobs()
	jobs := make([]JobInfo, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, JobInfo{Name: name, NextRun: mc.jobs.NextRun(name)})
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// RunJob handles POST /api/maintenance/jobs/:name/run
func (mc *MaintenanceController) RunJob(c *gin.Context) {
	name := c.Param("name")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := mc.jobs.RunNow(ctx, name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			respondNotFound(c, "job "+name)
			return
		}
		respondInternalError(c, err, "Failed to run job")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job":     name,
		"message": "job started",
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (mc *MaintenanceController) GetTaskStatus(c *gin.Context) {
	if mc.status == nil {
		respondNotFound(c, "task queue")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	taskID := c.Param("id")
	status, err := mc.status.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "Failed to read task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
