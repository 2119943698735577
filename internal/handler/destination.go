package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/model"
	"github.com/psds-microservice/support-relay/internal/service"
)

type DestinationHandler struct {
	svc service.DestinationServicer
}

func NewDestinationHandler(svc service.DestinationServicer) *DestinationHandler {
	return &DestinationHandler{svc: svc}
}

// List returns the destinations a requester would be offered right now.
func (h *DestinationHandler) List(c *gin.Context) {
	items, err := h.svc.ListVisible(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list destinations"})
		return
	}
	if items == nil {
		items = []model.VisibleDestination{}
	}
	c.JSON(http.StatusOK, gin.H{
		"destinations": items,
		"total":        len(items),
	})
}

func (h *DestinationHandler) Get(c *gin.Context) {
	code, err := strconv.ParseUint(c.Param("code"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}
	d, err := h.svc.FindByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, errs.ErrDestinationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "destination not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}
