// internal/handler/dive_handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dive-service/internal/model"
	"dive-service/internal/repository"
	"dive-service/internal/service"
	"dive-service/internal/utils"
)

// DiveService is the service surface used by the dive handler
type DiveService interface {
	Initialize(ctx context.Context) (*service.InitializeResult, error)
	ScanDevices(ctx context.Context) (*service.ScanResult, error)
	ConnectDevice(ctx context.Context, req *service.ConnectDeviceRequest) (*service.ConnectResult, error)
	DownloadDives(ctx context.Context, req *service.DownloadDivesRequest) (*service.DownloadResult, error)
	DisconnectDevice(ctx context.Context) (*service.DisconnectResult, error)
	ListDives(ctx context.Context, address string, filter *repository.DiveFilter) ([]model.DiveRecord, error)
	Status() *service.StatusResponse
}

// DiveHandler handles dive computer HTTP requests
type DiveHandler struct {
	service DiveService
	logger  *utils.ServiceLogger
}

// NewDiveHandler creates a new dive handler
func NewDiveHandler(service DiveService, logger *zap.Logger) *DiveHandler {
	return &DiveHandler{
		service: service,
		logger:  utils.NewServiceLogger(logger, "dive-handler"),
	}
}

// RegisterRoutes registers dive computer routes
func (h *DiveHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/initialize", h.Initialize)
	router.GET("/status", h.GetStatus)

	devices := router.Group("/devices")
	{
		devices.GET("/scan", h.ScanDevices)
		devices.POST("/connect", h.ConnectDevice)
		devices.POST("/disconnect", h.DisconnectDevice)
	}

	dives := router.Group("/dives")
	{
		dives.POST("/download", h.DownloadDives)
		dives.GET("", h.ListDives)
	}
}

// Initialize checks the wireless subsystem
// @Summary Initialize
// @Description Check the Bluetooth adapter and list supported instrument families
// @Tags Session
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.InitializeResult} "Initialized"
// @Failure 409 {object} utils.APIResponse "Another call is running"
// @Router /initialize [post]
func (h *DiveHandler) Initialize(c *gin.Context) {
	result, err := h.service.Initialize(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to initialize", zap.Error(err))
		sessionErrorResponse(c, "Failed to initialize", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Initialized", result)
}

// GetStatus returns the current session state
// @Summary Session status
// @Tags Session
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.StatusResponse} "Session status"
// @Router /status [get]
func (h *DiveHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session status", h.service.Status())
}

// ScanDevices lists known instruments
// @Summary Scan devices
// @Description List bonded and attached instruments with the family their name suggests
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.ScanResult} "Devices found"
// @Failure 503 {object} utils.APIResponse "Transport unavailable or disabled"
// @Router /devices/scan [get]
func (h *DiveHandler) ScanDevices(c *gin.Context) {
	result, err := h.service.ScanDevices(c.Request.Context())
	if err != nil {
		h.logger.Warn("Device scan failed", zap.Error(err))
		sessionErrorResponse(c, "Failed to scan devices", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Devices found", result)
}

// ConnectDevice opens a session
// @Summary Connect device
// @Description Open a session with an instrument, replacing any current session
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body service.ConnectDeviceRequest true "Connect request"
// @Success 200 {object} utils.APIResponse{data=service.ConnectResult} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Endpoint not found"
// @Failure 502 {object} utils.APIResponse "Connect failed"
// @Router /devices/connect [post]
func (h *DiveHandler) ConnectDevice(c *gin.Context) {
	var req service.ConnectDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.service.ConnectDevice(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to connect device", zap.String("address", req.Address), zap.Error(err))
		sessionErrorResponse(c, "Failed to connect device", err)
		return
	}

	h.logger.Info("Device connected", zap.String("address", result.Address))
	utils.SuccessResponse(c, http.StatusOK, "Device connected", result)
}

// DownloadDives downloads dives from the open session
// @Summary Download dives
// @Description Download dives newer than the fingerprint, or the stored watermark when none is given
// @Tags Dives
// @Accept json
// @Produce json
// @Param request body service.DownloadDivesRequest false "Download request"
// @Success 200 {object} utils.APIResponse{data=service.DownloadResult} "Dives downloaded"
// @Failure 400 {object} utils.APIResponse "Invalid fingerprint"
// @Failure 409 {object} utils.APIResponse "No active session or session busy"
// @Failure 502 {object} utils.APIResponse "Download failed"
// @Router /dives/download [post]
func (h *DiveHandler) DownloadDives(c *gin.Context) {
	var req service.DownloadDivesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	result, err := h.service.DownloadDives(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to download dives", zap.Error(err))
		sessionErrorResponse(c, "Failed to download dives", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Dives downloaded", result)
}

// DisconnectDevice releases the session
// @Summary Disconnect device
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.DisconnectResult} "Disconnected"
// @Failure 500 {object} utils.APIResponse "Resource release failed"
// @Router /devices/disconnect [post]
func (h *DiveHandler) DisconnectDevice(c *gin.Context) {
	result, err := h.service.DisconnectDevice(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to disconnect device", zap.Error(err))
		sessionErrorResponse(c, "Failed to disconnect device", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device disconnected", result)
}

// ListDives lists stored dives of an instrument
// @Summary List stored dives
// @Tags Dives
// @Produce json
// @Param address query string true "Instrument address"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(100)
// @Success 200 {object} utils.APIResponse{data=object{dives=[]model.DiveRecord}} "Dives retrieved"
// @Failure 400 {object} utils.APIResponse "Missing address"
// @Router /dives [get]
func (h *DiveHandler) ListDives(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		utils.ValidationErrorResponse(c, map[string]string{"address": "address is required"})
		return
	}

	filter := &repository.DiveFilter{Page: 1, PerPage: 100}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("per_page")); err == nil && perPage > 0 {
		filter.PerPage = perPage
	}

	dives, err := h.service.ListDives(c.Request.Context(), address, filter)
	if err != nil {
		h.logger.Error("Failed to list dives", zap.String("address", address), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list dives", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Dives retrieved", gin.H{"dives": dives})
}
