package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pattty847/Multi-Agent-Team/internal/api_service/service"
	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// API provides handlers for the orchestration service.
type API struct {
	service  *service.OrchestratorService
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.OrchestratorService, log *logger.Logger) *API {
	return &API{
		service: svc,
		logger:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // In production, implement a proper origin check.
			},
		},
	}
}

// HealthHandler answers liveness probes.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SubmitWorkflowHandler handles the submission of a new objective.
func (a *API) SubmitWorkflowHandler(c *gin.Context) {
	userID, _ := c.Get("userID")

	var payload struct {
		Objective string `json:"objective" binding:"required"`
		Type      string `json:"type"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	wf, err := a.service.SubmitWorkflow(c.Request.Context(), userID.(string), payload.Objective, payload.Type)
	if err != nil {
		// The service layer already logged the detailed error.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit workflow"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"workflow_id": wf.ID, "status": wf.Status})
}

// GetWorkflowHandler returns a single workflow by its ID.
func (a *API) GetWorkflowHandler(c *gin.Context) {
	userID, _ := c.Get("userID")
	workflowID := c.Param("id")

	wf, err := a.service.GetWorkflow(c.Request.Context(), workflowID, userID.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workflow"})
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found or not authorized"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

// GetWorkflowsHandler returns a page of the user's workflows.
func (a *API) GetWorkflowsHandler(c *gin.Context) {
	userID, _ := c.Get("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	workflows, err := a.service.GetUserWorkflows(c.Request.Context(), userID.(string), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workflows"})
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// StopWorkflowHandler stops a running workflow.
func (a *API) StopWorkflowHandler(c *gin.Context) {
	userID, _ := c.Get("userID")
	workflowID := c.Param("id")

	if err := a.service.StopWorkflow(c.Request.Context(), workflowID, userID.(string)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow_id": workflowID, "status": "stopping"})
}

// GetWorkersHandler lists the worker replicas registered in etcd.
func (a *API) GetWorkersHandler(c *gin.Context) {
	workers, err := a.service.Workers()
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to discover workers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to discover workers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

// WebSocketHandler upgrades the connection and streams workflow updates.
func (a *API) WebSocketHandler(c *gin.Context) {
	userID, _ := c.Get("userID")

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to upgrade WebSocket connection")
		return
	}

	a.service.AddConnection(userID.(string), conn)

	go func() {
		defer a.service.RemoveConnection(userID.(string))
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
	}()
}
