package models_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/utils"
)

// openTestDB points the global handle at a private in-memory sqlite database.
func openTestDB(t *testing.T) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := config.OpenDatabase(config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	config.UseDatabase(db)
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
}

func asAppError(err error, target **utils.AppError) bool {
	return errors.As(err, target)
}

func strPtr(s string) *string {
	return &s
}

func mustCustomer(t *testing.T, ctx context.Context, name string, mobile string, refID *string) *models.Customer {
	t.Helper()
	c, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: name, MobileNo: mobile, ReferenceID: refID})
	if err != nil {
		t.Fatalf("CreateCustomer(%s): %v", name, err)
	}
	return c
}

func mustProduct(t *testing.T, ctx context.Context, name string, unit string) *models.Product {
	t.Helper()
	p, err := models.CreateProduct(ctx, &models.NewProduct{Name: name, Unit: unit})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return p
}

// mustQuotation inserts a quotation directly, bypassing image staging and rendering.
func mustQuotation(t *testing.T, ctx context.Context, customerID string, date string, items ...models.NewItem) *models.Quotation {
	t.Helper()
	input := &models.NewQuotation{QuotationDate: date, CustomerID: customerID, Items: items}
	products, err := input.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	q, err := models.NewQuotationRow("", input, nil)
	if err != nil {
		t.Fatalf("NewQuotationRow: %v", err)
	}
	db := config.GetDB().WithContext(ctx)
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("create quotation: %v", err)
	}
	rows := models.BuildItems(q.ID, input.Items, products, nil)
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("create items: %v", err)
	}
	return q
}

func item(productID string, rate string) models.NewItem {
	return models.NewItem{ProductID: productID, Rate: decimal.RequireFromString(rate)}
}
