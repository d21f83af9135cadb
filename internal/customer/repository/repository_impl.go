package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/cobro/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *customerdomain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := db.WithContext(ctx).First(&customer, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, customerdomain.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]customerdomain.Customer, error) {
	var customers []customerdomain.Customer
	err := db.WithContext(ctx).Order("name ASC").Find(&customers).Error
	return customers, err
}
