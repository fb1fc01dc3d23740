package handlers

import (
	"net/http"

	"bloodcell-inference-service/internal/adapters/primary/http/dto"
	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) Classify(c *gin.Context) {
	if h.registry == nil {
		mapDomainError(c, domain.ErrModelsNotAvailable)
		return
	}

	upload, err := h.readUpload(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	res, err := h.predictSvc.Classify(c.Request.Context(), domain.ClassifyInput{
		Image:   upload,
		ModelID: param(c, "model_id", ""),
	})
	if err != nil {
		log.WithError(err).Error("classification failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToClassificationResponse(res))
}

func (h *Handler) Detect(c *gin.Context) {
	in, ok := h.detectInput(c)
	if !ok {
		return
	}

	res, err := h.predictSvc.Detect(c.Request.Context(), in)
	if err != nil {
		log.WithError(err).Error("detection failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDetectionResponse(res))
}

func (h *Handler) Count(c *gin.Context) {
	in, ok := h.detectInput(c)
	if !ok {
		return
	}

	res, err := h.predictSvc.Count(c.Request.Context(), in)
	if err != nil {
		log.WithError(err).Error("cell count failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCountResponse(res))
}

func (h *Handler) detectInput(c *gin.Context) (domain.DetectInput, bool) {
	if h.registry == nil {
		mapDomainError(c, domain.ErrModelsNotAvailable)
		return domain.DetectInput{}, false
	}

	upload, err := h.readUpload(c)
	if err != nil {
		mapDomainError(c, err)
		return domain.DetectInput{}, false
	}

	conf, showLabels, err := h.detectParams(c)
	if err != nil {
		mapDomainError(c, err)
		return domain.DetectInput{}, false
	}

	return domain.DetectInput{Image: upload, Conf: conf, ShowLabels: showLabels}, true
}

func (h *Handler) Predict(c *gin.Context) {
	if h.registry == nil {
		mapDomainError(c, domain.ErrModelsNotAvailable)
		return
	}

	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError(err.Error()))
		return
	}

	res, err := h.predictSvc.Predict(c.Request.Context(), req.ToInput())
	if err != nil {
		log.WithError(err).WithField("task", req.Task).Error("prediction failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictResponse(res))
}
