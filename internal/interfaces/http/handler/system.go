package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mfi/backend/internal/interfaces/http/dto"
)

// Version is the release version reported by /system/info. Overridden
// at build time with -ldflags "-X ...handler.Version=x.y.z".
var Version = "1.0.0"

// SystemHandler serves service metadata and liveness endpoints.
type SystemHandler struct {
	BaseHandler
	serviceName string
	environment string
	startedAt   time.Time
}

func NewSystemHandler(serviceName, environment string) *SystemHandler {
	if serviceName == "" {
		serviceName = "mfi-backend"
	}
	return &SystemHandler{
		serviceName: serviceName,
		environment: environment,
		startedAt:   time.Now(),
	}
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name        string `json:"name" example:"mfi-backend"`
	Environment string `json:"environment" example:"production"`
	Version     string `json:"version" example:"1.0.0"`
	GoVersion   string `json:"go_version" example:"go1.25.5"`
	StartedAt   string `json:"started_at" example:"2026-01-23T12:00:00Z"`
	Uptime      string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns service name, version, environment and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:        h.serviceName,
		Environment: h.environment,
		Version:     Version,
		GoVersion:   runtime.Version(),
		StartedAt:   h.startedAt.UTC().Format(time.RFC3339),
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
	}))
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness check
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}
