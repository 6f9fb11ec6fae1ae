package utils

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/marutilaminates/laminates_backend/config"
)

// check if id exists, return a NotFound error naming the field
func ValidateResourceId[T any](ctx context.Context, field string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return NotFound(field, fmt.Sprintf("%s %v not found", strings.TrimSuffix(field, "_id"), id))
	}
	return nil
}

// check if ALL ids exist; the error lists the ones that do not
func ValidateResourcesId[M any](ctx context.Context, field string, ids []string) error {
	missing, err := MissingResourceIds[M](ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return NotFound(field, fmt.Sprintf("%s not found: %s", strings.TrimSuffix(field, "_id"), strings.Join(missing, ", ")))
	}
	return nil
}

// MissingResourceIds compares the distinct requested ids against the table.
func MissingResourceIds[M any](ctx context.Context, ids []string) ([]string, error) {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil, nil
	}

	var model M
	var found []string
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&model).Where("id IN ?", unqIds).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	if len(found) == len(unqIds) {
		return nil, nil
	}

	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []string
	for _, id := range unqIds {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ValidateUnique fails with Conflict when another row already holds value in column.
func ValidateUnique[T any](ctx context.Context, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return Conflict("duplicate "+column, count)
	}
	return nil
}

// ValidateUniquePair is ValidateUnique over a two-column key where the second column may be NULL.
func ValidateUniquePair[T any](ctx context.Context, colA string, valueA interface{}, colB string, valueB *string, exceptId string) error {
	var model T
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model).Where(colA+" = ?", valueA)
	if valueB == nil {
		dbCtx = dbCtx.Where(colB + " IS NULL")
	} else {
		dbCtx = dbCtx.Where(colB+" = ?", *valueB)
	}
	if exceptId != "" {
		dbCtx = dbCtx.Where("NOT id = ?", exceptId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return Conflict(fmt.Sprintf("duplicate %s and %s", colA, colB), count)
	}
	return nil
}

// count records, using WHERE $condition
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
