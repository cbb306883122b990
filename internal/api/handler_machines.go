package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"machine-downtime-backend/config"
)

type putMachinesRequest struct {
	Machines []config.MachineConfig `json:"machines" binding:"required"`
}

// PutMachines registers or updates machines by code.
func (h *Handler) PutMachines(c *gin.Context) {
	var req putMachinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	n, err := h.svc.RegisterMachines(c.Request.Context(), req.Machines)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registered": n})
}

type validateRequest struct {
	Code string `json:"code"`
}

// ValidateMachine checks a scanned machine code against the registry.
func (h *Handler) ValidateMachine(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	m, err := h.svc.ValidateCode(c.Request.Context(), req.Code)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"code":      m.Code,
		"operation": m.Operation,
	})
}

// GetLatestForOperation returns the most recent report of an operation today.
func (h *Handler) GetLatestForOperation(c *gin.Context) {
	ev, err := h.svc.LatestForOperation(c.Request.Context(), c.Param("operation"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no events today"})
		return
	}

	c.JSON(http.StatusOK, ev)
}
