package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marutilaminates/laminates_backend/utils"
)

// assignID gives a new row a uuid unless the caller pre-allocated one.
func assignID(id *string) {
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

func (r *Reference) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	assignID(&q.ID)
	return nil
}

func (it *Item) BeforeCreate(tx *gorm.DB) error {
	assignID(&it.ID)
	return nil
}

// fetch loads one row by id, mapping a missing row to utils.NotFound.
func fetch[T any](db *gorm.DB, field string, id string, associations ...string) (*T, error) {
	var result T
	query := db.Model(&result)
	for _, assoc := range associations {
		query = query.Preload(assoc)
	}
	if err := query.Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound(field, strings.TrimSuffix(field, "_id")+" not found")
		}
		return nil, err
	}
	return &result, nil
}

// translateDuplicate turns a unique-index violation into a Conflict.
func translateDuplicate(err error, message string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.Conflict(message, 1)
	}
	return err
}
