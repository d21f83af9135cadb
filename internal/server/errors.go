package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	catalogdomain "github.com/smallbiznis/cobro/internal/catalog/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	orderingdomain "github.com/smallbiznis/cobro/internal/ordering/domain"
	"github.com/smallbiznis/cobro/internal/scheduler"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, orderingdomain.ErrValidation),
		errors.Is(err, collectiondomain.ErrEmptyCycleList),
		errors.Is(err, collectiondomain.ErrCycleNotOwned),
		errors.Is(err, collectiondomain.ErrCycleNotBillable),
		errors.Is(err, billingcycledomain.ErrInvalidPeriod),
		errors.Is(err, billingcycledomain.ErrInvalidQuantity),
		errors.Is(err, billingcycledomain.ErrSubscriptionNotActive),
		errors.Is(err, subscriptiondomain.ErrInvalidCustomer),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, scheduler.ErrUnknownJob):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, billingcycledomain.ErrNotFound),
		errors.Is(err, billingcycledomain.ErrNoActiveCycle),
		errors.Is(err, collectiondomain.ErrOrderNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrPlanNotFound),
		errors.Is(err, dispatchdomain.ErrDetailNotFound),
		errors.Is(err, dispatchdomain.ErrPickupNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, billingcycledomain.ErrCycleNumberConflict),
		errors.Is(err, collectiondomain.ErrCycleAlreadyBilled),
		errors.Is(err, collectiondomain.ErrOrderHasPayments),
		errors.Is(err, subscriptiondomain.ErrAlreadyCancelled):
		return true
	default:
		return false
	}
}
