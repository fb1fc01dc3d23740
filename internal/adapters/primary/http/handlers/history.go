package handlers

import (
	"net/http"
	"strconv"

	"bloodcell-inference-service/internal/adapters/primary/http/dto"
	"bloodcell-inference-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := domain.HistoryFilter{
		Task:   c.Query("task"),
		Order:  c.Query("order"),
		Limit:  limit,
		Offset: offset,
	}

	page, err := h.historySvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list history failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.HistoryRecordResponse, 0, len(page.Records))
	for _, r := range page.Records {
		items = append(items, dto.ToHistoryRecordResponse(r))
	}

	c.JSON(http.StatusOK, dto.ListHistoryResponse{
		Success:    true,
		Items:      items,
		Total:      page.Total,
		PageSize:   page.Limit,
		NextOffset: page.Offset + len(items),
	})
}

func (h *Handler) GetHistoryStats(c *gin.Context) {
	stats, err := h.historySvc.Stats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("history stats failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.HistoryStatsResponse{Success: true, Stats: *stats})
}

func (h *Handler) GetHistoryRecord(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("invalid record id"))
		return
	}

	rec, err := h.historySvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "record": dto.ToHistoryRecordResponse(rec)})
}

func (h *Handler) DeleteHistoryRecord(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewError("invalid record id"))
		return
	}

	if err := h.historySvc.Delete(c.Request.Context(), id); err != nil {
		mapDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
