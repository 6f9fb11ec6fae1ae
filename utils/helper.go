package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

var mobilePattern = regexp.MustCompile(`^[+]?[\d\s\-()]+$`)

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// ValidateMobileNumber checks the accepted shape (digits, spaces, dashes,
// parentheses, optional leading +, 10-15 chars) and then the number itself.
func ValidateMobileNumber(mobile string) error {
	mobile = strings.TrimSpace(mobile)
	if len(mobile) < 10 || len(mobile) > 15 {
		return errors.New("mobile number must be between 10 and 15 characters")
	}
	if !mobilePattern.MatchString(mobile) {
		return errors.New("mobile number contains invalid characters")
	}
	return ValidatePhoneNumber(mobile, CountryCode)
}

// GenerateUniqueFilename returns "<unix millis>-<base36 random>".
func GenerateUniqueFilename() string {
	timestamp := time.Now().UnixMilli()
	random := strconv.FormatInt(rand.Int63(), 36)
	return fmt.Sprintf("%d-%s", timestamp, random)
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// NilIfEmpty trims s and returns nil for blank input.
func NilIfEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ParseDate accepts "2006-01-02" or RFC3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
