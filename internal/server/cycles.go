package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
)

func (s *Server) ListSubscriptionCycles(c *gin.Context) {
	subID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycles, err := s.cycleSvc.ListCycles(c.Request.Context(), subID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cycles})
}

func (s *Server) VerifyCycleSequence(c *gin.Context) {
	subID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.cycleSvc.VerifyIntegrity(c.Request.Context(), subID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"report": report,
		"ok":     report.OK(),
	}})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	subID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.subscriptionSvc.Cancel(c.Request.Context(), subID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
}

type quotaRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Items          []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (r quotaRequest) parse() (quotaArgs, error) {
	var args quotaArgs
	subID, err := parseID(r.SubscriptionID)
	if err != nil {
		return args, err
	}
	args.SubscriptionID = subID
	for _, item := range r.Items {
		productID, err := parseID(item.ProductID)
		if err != nil {
			return args, err
		}
		args.Items = append(args.Items, billingcycledomain.QuotaItem{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}
	return args, nil
}

type quotaArgs struct {
	SubscriptionID snowflake.ID
	Items          []billingcycledomain.QuotaItem
}

func (s *Server) ValidateQuota(c *gin.Context) {
	var req quotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	args, err := req.parse()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	validation, err := s.cycleSvc.ValidateQuota(c.Request.Context(), args.SubscriptionID, args.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": validation})
}

// ApplyDelivery records delivered quantities against the subscription's
// active cycle. The subscription id in the path must match the body.
func (s *Server) ApplyDelivery(c *gin.Context) {
	subID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req quotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	args, err := req.parse()
	if err != nil || args.SubscriptionID != subID {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.cycleSvc.ApplyDelivery(c.Request.Context(), subID, args.Items); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"applied": len(args.Items)}})
}
