// Package domain defines the generic order-creation collaborator used as
// the primary path by the collection generator.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateOrderRequest struct {
	CustomerID            snowflake.ID
	OrderDate             time.Time
	ScheduledDeliveryDate time.Time
	IsAutomated           bool
	Notes                 string
}

type Service interface {
	// CreateOrder validates the request and inserts the order, returning
	// its id. Validation failures wrap ErrValidation so callers can fall
	// back to a direct insert.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (snowflake.ID, error)
}

var ErrValidation = errors.New("order_validation")

func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
