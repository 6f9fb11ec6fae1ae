package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

// Reference is the party that referred a customer, such as a carpenter or dealer.
type Reference struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_reference_name_mobile" json:"name"`
	MobileNo  *string   `gorm:"size:20;uniqueIndex:idx_reference_name_mobile" json:"mobile_no"`
	Category  string    `gorm:"size:50;not null" json:"category"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReference struct {
	Name     string  `json:"name" binding:"required,min=2,max=100"`
	MobileNo *string `json:"mobile_no" binding:"omitempty,max=20"`
	Category string  `json:"category" binding:"required,ref_category"`
}

type ReferenceFilter struct {
	Search   string `form:"search"`
	Category string `form:"category"`
}

func (input *NewReference) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	input.MobileNo = utils.NilIfEmpty(input.MobileNo)
	if input.MobileNo != nil {
		if err := utils.ValidateMobileNumber(*input.MobileNo); err != nil {
			return utils.Validation("mobile_no", err.Error())
		}
	}
	if !IsValidReferenceCategory(input.Category) {
		return utils.Validation("category", "invalid category")
	}
	if err := utils.ValidateUniquePair[Reference](ctx, "name", input.Name, "mobile_no", input.MobileNo, id); err != nil {
		return err
	}
	return nil
}

func CreateReference(ctx context.Context, input *NewReference) (*Reference, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}

	ref := Reference{
		Name:     input.Name,
		MobileNo: input.MobileNo,
		Category: input.Category,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ref).Error; err != nil {
		return nil, translateDuplicate(err, "reference with this name and mobile already exists")
	}
	return &ref, nil
}

func UpdateReference(ctx context.Context, id string, input *NewReference) (*Reference, error) {
	db := config.GetDB()
	ref, err := fetch[Reference](db.WithContext(ctx), "reference_id", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(ref).Updates(map[string]interface{}{
		"name":      input.Name,
		"mobile_no": input.MobileNo,
		"category":  input.Category,
	}).Error
	if err != nil {
		return nil, translateDuplicate(err, "reference with this name and mobile already exists")
	}
	return fetch[Reference](db.WithContext(ctx), "reference_id", id)
}

// DeleteReference is blocked while customers point at the reference; the
// Conflict carries how many do.
func DeleteReference(ctx context.Context, id string) (*Reference, error) {
	db := config.GetDB()
	ref, err := fetch[Reference](db.WithContext(ctx), "reference_id", id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Customer](ctx, "reference_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Conflict(fmt.Sprintf("cannot delete reference: %d customer(s) are associated with it", count), count)
	}

	if err := db.WithContext(ctx).Delete(ref).Error; err != nil {
		return nil, err
	}
	return ref, nil
}

func GetReference(ctx context.Context, id string) (*Reference, error) {
	return fetch[Reference](config.GetDB().WithContext(ctx), "reference_id", id)
}

func ListReferences(ctx context.Context, filter ReferenceFilter, page Page) (*PageResult[Reference], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Reference{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		dbCtx = dbCtx.Where("name LIKE ? OR mobile_no LIKE ?", like, like)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	return paginate[Reference](dbCtx, page, "created_at DESC")
}
