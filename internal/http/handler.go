package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plaque-dashboard/internal/client/backend"
	"plaque-dashboard/internal/domain/gallery"
	"plaque-dashboard/internal/domain/plate"
	"plaque-dashboard/internal/service"
	"plaque-dashboard/internal/worker"
)

const maxUploadBytes = 100 << 20

const msgBackendDown = "Impossible de traiter le fichier. Vérifiez que le backend est démarré."

type BackendAPI interface {
	HealthCheck(ctx context.Context) (*backend.HealthResponse, error)
	FetchDashboardStats(ctx context.Context) backend.DashboardStats
	FetchMetrics(ctx context.Context) (*backend.Metrics, error)
}

// StatusCache serves the last polled backend health and stats.
type StatusCache interface {
	Health() (worker.HealthStatus, bool)
	Stats() (backend.DashboardStats, time.Time, bool)
}

type Handler struct {
	galleryService   *service.GalleryService
	session          *service.DetectionSession
	detectionService *service.DetectionService
	chatService      *service.ChatService
	backend          BackendAPI
	status           StatusCache
	log              zerolog.Logger
}

func NewHandler(
	galleryService *service.GalleryService,
	session *service.DetectionSession,
	detectionService *service.DetectionService,
	chatService *service.ChatService,
	backendAPI BackendAPI,
	status StatusCache,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		galleryService:   galleryService,
		session:          session,
		detectionService: detectionService,
		chatService:      chatService,
		backend:          backendAPI,
		status:           status,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	public := r.Group("/api/v1")
	{
		public.GET("/backend/health", h.backendHealth)
		public.GET("/dashboard", h.dashboard)
		public.GET("/metrics", h.metrics)

		public.GET("/plates/parse", h.parsePlate)
		public.GET("/plates/regions", h.listRegions)

		public.GET("/detection", h.detectionState)
		public.POST("/detection/image", h.detectImage)
		public.POST("/detection/video", h.detectVideo)
		public.POST("/detection/reset", h.resetDetection)
		public.POST("/detection/reanalyze", h.runPendingReanalysis)

		public.GET("/gallery", h.listGallery)
		public.GET("/gallery/:id", h.getGalleryItem)
		public.POST("/gallery/:id/reanalyze", h.reanalyzeGalleryItem)

		public.POST("/chat", h.chat)
		public.GET("/chat/history", h.chatHistory)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/gallery/:id/favorite", h.toggleFavorite)
		protected.DELETE("/gallery/:id", h.removeGalleryItem)
		protected.DELETE("/chat/history", h.clearChatHistory)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) backendHealth(c *gin.Context) {
	if c.Query("live") != "true" {
		if status, ok := h.status.Health(); ok {
			c.JSON(http.StatusOK, successResponse(status))
			return
		}
	}

	status := worker.HealthStatus{CheckedAt: time.Now()}
	resp, err := h.backend.HealthCheck(c.Request.Context())
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Online = true
		status.Status = resp.Status
		status.Message = resp.Message
	}
	c.JSON(http.StatusOK, successResponse(status))
}

func (h *Handler) dashboard(c *gin.Context) {
	stats, at, ok := h.status.Stats()
	if !ok {
		stats = h.backend.FetchDashboardStats(c.Request.Context())
		at = time.Now()
	}

	recent := h.galleryService.Items()
	if len(recent) > 5 {
		recent = recent[:5]
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"stats":            stats,
		"stats_updated_at": at,
		"gallery":          h.galleryService.KPIs(),
		"recent":           recent,
	}))
}

func (h *Handler) metrics(c *gin.Context) {
	m, err := h.backend.FetchMetrics(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to fetch model metrics")
		c.JSON(http.StatusBadGateway, errorResponse("metrics unavailable"))
		return
	}
	c.JSON(http.StatusOK, successResponse(m))
}

func (h *Handler) parsePlate(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(plate.Parse(c.Query("text"))))
}

func (h *Handler) listRegions(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(plate.Regions()))
}

func (h *Handler) detectionState(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.session.State()))
}

func (h *Handler) detectImage(c *gin.Context) {
	filename, data, err := readUpload(c, "image")
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.detectionService.ProcessImage(c.Request.Context(), filename, data)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) detectVideo(c *gin.Context) {
	filename, data, err := readUpload(c, "video")
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.detectionService.ProcessVideo(c.Request.Context(), filename, data)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) resetDetection(c *gin.Context) {
	h.session.Reset()
	c.JSON(http.StatusOK, successResponse(h.session.State()))
}

func (h *Handler) runPendingReanalysis(c *gin.Context) {
	result, ran, err := h.detectionService.RunPendingReanalysis(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !ran {
		c.JSON(http.StatusOK, successResponse(gin.H{"ran": false}))
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) listGallery(c *gin.Context) {
	filter := gallery.Filter{
		Search: strings.TrimSpace(c.Query("search")),
		Model:  strings.TrimSpace(c.Query("model")),
	}
	if fav := c.Query("favorites"); fav != "" {
		parsed, err := strconv.ParseBool(fav)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("favorites must be a boolean"))
			return
		}
		filter.FavoritesOnly = parsed
	}

	c.JSON(http.StatusOK, successResponse(h.galleryService.Filter(filter)))
}

func (h *Handler) getGalleryItem(c *gin.Context) {
	item, ok := h.galleryService.GetItemByID(c.Param("id"))
	if !ok {
		h.handleError(c, fmt.Errorf("%w: gallery item", service.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, successResponse(item))
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	item, ok := h.galleryService.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if !ok {
		h.handleError(c, fmt.Errorf("%w: gallery item", service.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, successResponse(item))
}

func (h *Handler) removeGalleryItem(c *gin.Context) {
	if !h.galleryService.RemoveItem(c.Request.Context(), c.Param("id")) {
		h.handleError(c, fmt.Errorf("%w: gallery item", service.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) reanalyzeGalleryItem(c *gin.Context) {
	result, err := h.detectionService.Reanalyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

type chatRequest struct {
	Question string `json:"question" binding:"required"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	answer := h.chatService.AnalyzeGalleryPlates(c.Request.Context(), h.galleryService.Items(), req.Question)
	c.JSON(http.StatusOK, successResponse(gin.H{
		"role":    service.RoleAssistant,
		"content": answer,
	}))
}

func (h *Handler) chatHistory(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.chatService.History()))
}

func (h *Handler) clearChatHistory(c *gin.Context) {
	h.chatService.ClearHistory()
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrBackendUnavailable):
		h.log.Warn().Err(err).Msg("detection backend unavailable")
		c.JSON(http.StatusBadGateway, errorResponse(msgBackendDown))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func readUpload(c *gin.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s file is required", service.ErrInvalidInput, field)
	}
	if fh.Size > maxUploadBytes {
		return "", nil, fmt.Errorf("%w: %s file is too large", service.ErrInvalidInput, field)
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return fh.Filename, data, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
