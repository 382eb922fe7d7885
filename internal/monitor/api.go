package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// API 提供监控服务的 REST 与 WebSocket 入口。
type API struct {
	tracker  *StateTracker
	buffer   *NodeUpdateBuffer
	hub      *Hub
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewAPI 创建监控 API 处理器。
func NewAPI(tracker *StateTracker, buffer *NodeUpdateBuffer, hub *Hub, log *logger.Logger) *API {
	return &API{
		tracker: tracker,
		buffer:  buffer,
		hub:     hub,
		logger:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // In production, implement a proper origin check.
			},
		},
	}
}

// StartBroadcasting 按缓冲的刷新节奏把批量更新广播给订阅者。
func (a *API) StartBroadcasting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.hub.Broadcast(a.buffer.Flush())
			}
		}
	}()
}

// HealthHandler 响应存活探测。
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetAgentsHandler 返回 Agent 状态，支持 ?role= 过滤。
func (a *API) GetAgentsHandler(c *gin.Context) {
	role := c.Query("role")
	if role != "" && !models.IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	states := a.tracker.Agents(models.AgentRole(role))
	c.JSON(http.StatusOK, gin.H{"agents": states})
}

// GetWorkflowsHandler 返回全部工作流摘要。
func (a *API) GetWorkflowsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": a.tracker.Workflows()})
}

// GetInteractionsHandler 返回某个工作流的消息流。
func (a *API) GetInteractionsHandler(c *gin.Context) {
	workflowID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"workflow_id":  workflowID,
		"interactions": a.tracker.Interactions(workflowID),
	})
}

// GetMetricsHandler 返回计数器和主机资源采样。
func (a *API) GetMetricsHandler(c *gin.Context) {
	counters, host := a.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"counters":    counters,
		"host":        host,
		"subscribers": a.hub.Count(),
	})
}

// WebSocketHandler 升级连接并登记为监控订阅者。
func (a *API) WebSocketHandler(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to upgrade WebSocket connection")
		return
	}
	a.hub.Add(conn)

	go func() {
		defer a.hub.Remove(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
	}()
}

// RegisterRoutes 注册监控服务的全部路由。
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/agents", api.GetAgentsHandler)
		v1.GET("/workflows", api.GetWorkflowsHandler)
		v1.GET("/workflows/:id/interactions", api.GetInteractionsHandler)
		v1.GET("/metrics", api.GetMetricsHandler)
	}

	router.GET("/ws/monitor", api.WebSocketHandler)
}
