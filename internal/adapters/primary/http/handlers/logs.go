package handlers

import (
	"net/http"
	"strconv"

	"bloodcell-inference-service/internal/adapters/primary/http/dto"
	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListLogs(c *gin.Context) {
	files, err := h.logSvc.List()
	if err != nil {
		log.WithError(err).Error("list logs failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToListLogsResponse(files))
}

func (h *Handler) GetLog(c *gin.Context) {
	filename := c.Param("filename")

	content, err := h.logSvc.Read(filename)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LogContentResponse{
		Success:  true,
		Filename: filename,
		Content:  content,
	})
}

func (h *Handler) CleanupLogs(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		mapDomainError(c, domain.ErrInvalidDays)
		return
	}

	deleted, err := h.logSvc.Cleanup(days)
	if err != nil {
		log.WithError(err).Error("cleanup logs failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCleanupLogsResponse(deleted, days))
}
