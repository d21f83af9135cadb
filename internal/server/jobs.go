package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
)

// RunJob triggers one scheduled job by name and returns its run summary.
func (s *Server) RunJob(c *gin.Context) {
	name := c.Param("name")

	summary, err := s.scheduler.RunJob(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ReassignmentStats(c *gin.Context) {
	stats, err := s.dispatchSvc.ReassignmentStats(c.Request.Context(), time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

type markDeliveryRequest struct {
	Status string `json:"status"`
}

func (s *Server) MarkDeliveryStatus(c *gin.Context) {
	detailID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req markDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := dispatchdomain.DeliveryStatus(req.Status)
	switch status {
	case dispatchdomain.DeliveryStatusPending,
		dispatchdomain.DeliveryStatusInTransit,
		dispatchdomain.DeliveryStatusDelivered,
		dispatchdomain.DeliveryStatusFailed,
		dispatchdomain.DeliveryStatusSkipped:
	default:
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.dispatchSvc.MarkDeliveryStatus(c.Request.Context(), detailID, status); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": status}})
}
