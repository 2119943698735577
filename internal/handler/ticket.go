package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/psds-microservice/support-relay/internal/service"
)

type TicketHandler struct {
	svc service.TicketServicer
}

func NewTicketHandler(svc service.TicketServicer) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// List отдаёт открытые тикеты; ?status=pending — застрявшие между записью и отправкой.
func (h *TicketHandler) List(c *gin.Context) {
	var (
		items []model.Ticket
		err   error
	)
	switch model.TicketStatus(c.DefaultQuery("status", string(model.TicketStatusOpen))) {
	case model.TicketStatusOpen:
		items, err = h.svc.LoadAll(c.Request.Context())
	case model.TicketStatusPending:
		items, err = h.svc.ListPending(c.Request.Context(), time.Now())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	if items == nil {
		items = []model.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   len(items),
	})
}
