package models

import (
	"context"
	"strings"
	"time"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

type Customer struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null;uniqueIndex:idx_customer_name_mobile" json:"name"`
	MobileNo    string     `gorm:"size:20;not null;uniqueIndex:idx_customer_name_mobile" json:"mobile_no"`
	Address     *string    `gorm:"size:500" json:"address"`
	GSTNumber   *string    `gorm:"column:gst_number;size:20" json:"gst_number"`
	ReferenceID *string    `gorm:"type:varchar(36);index" json:"reference_id"`
	Reference   *Reference `gorm:"foreignKey:ReferenceID;constraint:OnDelete:RESTRICT" json:"reference,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name        string  `json:"name" binding:"required,min=2,max=100"`
	MobileNo    string  `json:"mobile_no" binding:"required,mobile"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
	GSTNumber   *string `json:"gst_number" binding:"omitempty,max=20"`
	ReferenceID *string `json:"reference_id"`
}

type CustomerFilter struct {
	Search      string `form:"search"`
	ReferenceID string `form:"reference_id"`
}

func (input *NewCustomer) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	input.MobileNo = strings.TrimSpace(input.MobileNo)
	input.Address = utils.NilIfEmpty(input.Address)
	input.GSTNumber = utils.NilIfEmpty(input.GSTNumber)
	input.ReferenceID = utils.NilIfEmpty(input.ReferenceID)

	if n := len([]rune(input.Name)); n < 2 || n > 100 {
		return utils.Validation("name", "name must be between 2 and 100 characters")
	}
	if err := utils.ValidateMobileNumber(input.MobileNo); err != nil {
		return utils.Validation("mobile_no", err.Error())
	}
	if input.ReferenceID != nil {
		if err := utils.ValidateResourceId[Reference](ctx, "reference_id", *input.ReferenceID); err != nil {
			return err
		}
	}
	mobile := input.MobileNo
	if err := utils.ValidateUniquePair[Customer](ctx, "name", input.Name, "mobile_no", &mobile, id); err != nil {
		return err
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}

	customer := Customer{
		Name:        input.Name,
		MobileNo:    input.MobileNo,
		Address:     input.Address,
		GSTNumber:   input.GSTNumber,
		ReferenceID: input.ReferenceID,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, translateDuplicate(err, "customer with this name and mobile already exists")
	}
	return GetCustomer(ctx, customer.ID)
}

func UpdateCustomer(ctx context.Context, id string, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()
	customer, err := fetch[Customer](db.WithContext(ctx), "customer_id", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(customer).Updates(map[string]interface{}{
		"name":         input.Name,
		"mobile_no":    input.MobileNo,
		"address":      input.Address,
		"gst_number":   input.GSTNumber,
		"reference_id": input.ReferenceID,
	}).Error
	if err != nil {
		return nil, translateDuplicate(err, "customer with this name and mobile already exists")
	}
	return GetCustomer(ctx, id)
}

// DeleteCustomer is blocked while quotations exist for the customer.
func DeleteCustomer(ctx context.Context, id string) (*Customer, error) {
	db := config.GetDB()
	customer, err := fetch[Customer](db.WithContext(ctx), "customer_id", id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Quotation](ctx, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Conflict("cannot delete customer with existing quotations", count)
	}

	if err := db.WithContext(ctx).Delete(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return fetch[Customer](config.GetDB().WithContext(ctx), "customer_id", id, "Reference")
}

func ListCustomers(ctx context.Context, filter CustomerFilter, page Page) (*PageResult[Customer], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Customer{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("name LIKE ? OR mobile_no LIKE ?", like, like)
	}
	if filter.ReferenceID != "" {
		dbCtx = dbCtx.Where("reference_id = ?", filter.ReferenceID)
	}
	return paginate[Customer](dbCtx, page, "created_at DESC", "Reference")
}
