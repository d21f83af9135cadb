package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateSubscriptionRequest struct {
	CustomerID snowflake.ID
	PlanID     snowflake.ID
	StartAt    time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	ListActive(ctx context.Context) ([]Subscription, error)
	// Cancel marks the subscription CANCELLED and opens a pickup order
	// for the customer's equipment.
	Cancel(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound         = errors.New("subscription_not_found")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidPlan      = errors.New("invalid_plan")
	ErrAlreadyCancelled = errors.New("subscription_already_cancelled")
)
