package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

// Location is where in the site an item goes, e.g. Kitchen or Bedroom.
type Location struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLocation struct {
	Name string `json:"name" binding:"required,max=100"`
}

func (input *NewLocation) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.Validation("name", "name is required")
	}
	return utils.ValidateUnique[Location](ctx, "name", input.Name, id)
}

func CreateLocation(ctx context.Context, input *NewLocation) (*Location, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	location := Location{Name: input.Name}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		return nil, translateDuplicate(err, "location name already exists")
	}
	return &location, nil
}

func UpdateLocation(ctx context.Context, id string, input *NewLocation) (*Location, error) {
	db := config.GetDB()
	location, err := fetch[Location](db.WithContext(ctx), "location_id", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(location).Update("name", input.Name).Error; err != nil {
		return nil, translateDuplicate(err, "location name already exists")
	}
	location.Name = input.Name
	return location, nil
}

// DeleteLocation detaches items from the location before removing it.
func DeleteLocation(ctx context.Context, id string) (*Location, error) {
	db := config.GetDB()
	location, err := fetch[Location](db.WithContext(ctx), "location_id", id)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Item{}).Where("location_id = ?", id).Update("location_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(location).Error
	})
	if err != nil {
		return nil, err
	}
	return location, nil
}

func GetLocation(ctx context.Context, id string) (*Location, error) {
	return fetch[Location](config.GetDB().WithContext(ctx), "location_id", id)
}

func ListLocations(ctx context.Context, search string, page Page) (*PageResult[Location], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Location{})
	if s := strings.TrimSpace(search); s != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+s+"%")
	}
	return paginate[Location](dbCtx, page, "name ASC")
}
