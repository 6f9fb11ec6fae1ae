package models

import (
	"math"

	"gorm.io/gorm"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Page is the offset pagination request. Zero values mean page 1, limit 10.
type Page struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

type PageResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	p = p.normalize()
	return (p.Page - 1) * p.Limit
}

func newPagination(p Page, total int64) Pagination {
	p = p.normalize()
	pages := int(math.Ceil(float64(total) / float64(p.Limit)))
	return Pagination{
		Page:    p.Page,
		Limit:   p.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}

// paginate counts dbCtx, then loads one page of it into T in the given order.
func paginate[T any](dbCtx *gorm.DB, p Page, order string, preloads ...string) (*PageResult[T], error) {
	return paginateWith[T](dbCtx, p, order, func(query *gorm.DB) *gorm.DB {
		for _, assoc := range preloads {
			query = query.Preload(assoc)
		}
		return query
	})
}

// paginateWith applies load to the page query only, never to the count.
func paginateWith[T any](dbCtx *gorm.DB, p Page, order string, load func(*gorm.DB) *gorm.DB) (*PageResult[T], error) {
	p = p.normalize()
	var total int64
	if err := dbCtx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	query := load(dbCtx.Session(&gorm.Session{}))
	items := make([]T, 0, p.Limit)
	if err := query.Order(order).Limit(p.Limit).Offset(p.Offset()).Find(&items).Error; err != nil {
		return nil, err
	}
	return &PageResult[T]{Items: items, Pagination: newPagination(p, total)}, nil
}
