package handlers

import (
	"errors"
	"net/http"

	"bloodcell-inference-service/internal/adapters/primary/http/dto"
	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListModels(c *gin.Context) {
	if h.registry == nil {
		mapDomainError(c, domain.ErrModelsNotAvailable)
		return
	}

	c.JSON(http.StatusOK, dto.ModelsResponse{
		Success: true,
		Models:  h.registry.Availability(),
	})
}

func (h *Handler) GetModel(c *gin.Context) {
	if h.registry == nil {
		mapDomainError(c, domain.ErrModelsNotAvailable)
		return
	}

	detail, err := h.registry.Describe(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownModel) {
			c.JSON(http.StatusNotFound, dto.NewError(err.Error()))
			return
		}
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelDetailResponse(detail))
}

func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.registry != nil {
		status["models"] = h.registry.Availability()
	}
	c.JSON(http.StatusOK, status)
}
