package models

import (
	"github.com/marutilaminates/laminates_backend/config"
)

// MigrateTable creates or alters every table, parents before children.
func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&User{},
		&Reference{},
		&Customer{},
		&Product{},
		&Location{},
		&Quotation{},
		&Item{},
	)
}
