package models

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marutilaminates/laminates_backend/utils"
)

type UserRole int

const (
	UserRoleAdmin    UserRole = 1
	UserRoleEmployee UserRole = 2
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleEmployee
}

func (r UserRole) String() string {
	switch r {
	case UserRoleAdmin:
		return "ADMIN"
	case UserRoleEmployee:
		return "EMPLOYEE"
	}
	return "UNKNOWN"
}

type PriceType string

const (
	PriceTypeInclusiveTax PriceType = "INCLUSIVE_TAX"
	PriceTypeExclusiveTax PriceType = "EXCLUSIVE_TAX"
)

func (t PriceType) IsValid() bool {
	return t == PriceTypeInclusiveTax || t == PriceTypeExclusiveTax
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypePerPiece   DiscountType = "PER_PIECE"
)

func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypePerPiece
}

// Units is the fixed unit vocabulary for products and items.
var Units = []string{
	"BOX",
	"CU.FEET",
	"CDM",
	"DOZEN",
	"KGS",
	"METER",
	"PCS",
	"R.FEET",
	"SET",
	"SQ.MT",
	"SQ.FT",
	"SQ.FT (Inches)",
}

var ReferenceCategories = []string{
	"Carpenter",
	"Interior Designer",
	"Dealer",
	"Builder",
	"Direct/Walking",
	"Staff",
	"Relation",
	"Other",
}

func IsValidUnit(unit string) bool {
	for _, u := range Units {
		if u == unit {
			return true
		}
	}
	return false
}

func IsValidReferenceCategory(category string) bool {
	for _, c := range ReferenceCategories {
		if c == category {
			return true
		}
	}
	return false
}

// RegisterValidators adds the domain tags used in binding tags:
// unit, ref_category, price_type, discount_type and mobile.
func RegisterValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"unit": func(fl validator.FieldLevel) bool {
			return IsValidUnit(fl.Field().String())
		},
		"ref_category": func(fl validator.FieldLevel) bool {
			return IsValidReferenceCategory(fl.Field().String())
		},
		"price_type": func(fl validator.FieldLevel) bool {
			return PriceType(strings.ToUpper(fl.Field().String())).IsValid()
		},
		"discount_type": func(fl validator.FieldLevel) bool {
			return DiscountType(strings.ToUpper(fl.Field().String())).IsValid()
		},
		"mobile": func(fl validator.FieldLevel) bool {
			return utils.ValidateMobileNumber(fl.Field().String()) == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}
