package handlers

import (
	"bloodcell-inference-service/internal/core/domain"
	"bloodcell-inference-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

// Options tune request parsing
type Options struct {
	MaxUploadBytes int64
	DefaultConf    float64
}

type Handler struct {
	registry   *services.ModelRegistry
	predictSvc *services.PredictionService
	logSvc     *services.LogService
	historySvc *services.HistoryService
	opts       Options
}

func New(
	registry *services.ModelRegistry,
	predictSvc *services.PredictionService,
	logSvc *services.LogService,
	historySvc *services.HistoryService,
	opts Options,
) *Handler {
	if opts.DefaultConf <= 0 {
		opts.DefaultConf = domain.DefaultConfidence
	}
	return &Handler{
		registry:   registry,
		predictSvc: predictSvc,
		logSvc:     logSvc,
		historySvc: historySvc,
		opts:       opts,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Health
	r.GET("/healthz", h.Health)

	// Models
	r.GET("/models", h.ListModels)
	r.GET("/models/:id", h.GetModel)

	// Predictions
	r.POST("/predict", h.Predict)
	r.POST("/predict/classification", h.Classify)
	r.POST("/predict/detection", h.Detect)
	r.POST("/predict/count", h.Count)

	// Request logs
	r.GET("/logs", h.ListLogs)
	r.DELETE("/logs/cleanup", h.CleanupLogs)
	r.GET("/logs/:filename", h.GetLog)

	// Prediction history
	r.GET("/history", h.ListHistory)
	r.GET("/history/stats", h.GetHistoryStats)
	r.GET("/history/:id", h.GetHistoryRecord)
	r.DELETE("/history/:id", h.DeleteHistoryRecord)
}
