package handlers

import (
	"errors"
	"net/http"

	"bloodcell-inference-service/internal/adapters/primary/http/dto"
	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrLogNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, dto.NewError(err.Error()))

	// Conflict errors
	case errors.Is(err, domain.ErrRecordExists):
		c.JSON(http.StatusConflict, dto.NewError(err.Error()))

	// Bad request / validation errors
	case errors.Is(err, domain.ErrUnknownModel),
		errors.Is(err, domain.ErrMissingImage),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrInvalidTask),
		errors.Is(err, domain.ErrInvalidConfidence),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidLogName),
		errors.Is(err, domain.ErrInvalidDays):
		c.JSON(http.StatusBadRequest, dto.NewError(err.Error()))

	case errors.Is(err, domain.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewError(err.Error()))

	// Service unavailable errors
	case errors.Is(err, domain.ErrModelNotLoaded),
		errors.Is(err, domain.ErrModelsNotAvailable),
		errors.Is(err, domain.ErrInferenceBusy),
		errors.Is(err, domain.ErrHistoryDisabled):
		c.JSON(http.StatusServiceUnavailable, dto.NewError(err.Error()))

	default:
		c.JSON(http.StatusInternalServerError, dto.NewError("internal server error"))
	}
}
