package config

import (
	"os"
	"strings"
	"time"
)

// ImageConfig governs item image uploads.
//
// Set via env:
// - IMAGE_MAX_PER_ITEM (default 10)
// - IMAGE_MAX_SIZE_BYTES (default 5MB)
// - IMAGE_COMPRESSION_ENABLED (default true)
// - IMAGE_COMPRESSION_QUALITY (default 80)
// - IMAGE_COMPRESSION_MIN_BYTES (default 100KB)
// - IMAGE_PRESERVE_DIMENSIONS (default true; false caps at 1200x1200)
type ImageConfig struct {
	MaxPerItem         int
	MaxSizeBytes       int64
	CompressionEnabled bool
	Quality            int
	MinBytesToCompress int64
	PreserveDimensions bool
	MaxWidth           int
	MaxHeight          int
}

func GetImageConfig() ImageConfig {
	cfg := ImageConfig{
		MaxPerItem:         intFromEnv("IMAGE_MAX_PER_ITEM", 10),
		MaxSizeBytes:       int64(intFromEnv("IMAGE_MAX_SIZE_BYTES", 5*1024*1024)),
		CompressionEnabled: boolFromEnv("IMAGE_COMPRESSION_ENABLED", true),
		Quality:            intFromEnv("IMAGE_COMPRESSION_QUALITY", 80),
		MinBytesToCompress: int64(intFromEnv("IMAGE_COMPRESSION_MIN_BYTES", 100*1024)),
		PreserveDimensions: boolFromEnv("IMAGE_PRESERVE_DIMENSIONS", true),
		MaxWidth:           1200,
		MaxHeight:          1200,
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		cfg.Quality = 80
	}
	return cfg
}

// PDFConfig bounds quotation rendering.
type PDFConfig struct {
	RenderTimeout    time.Duration
	FetchConcurrency int
	Letterhead       string
}

func GetPDFConfig() PDFConfig {
	return PDFConfig{
		RenderTimeout:    time.Duration(intFromEnv("PDF_RENDER_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchConcurrency: intFromEnv("PDF_IMAGE_FETCH_CONCURRENCY", 4),
		Letterhead:       strings.TrimSpace(os.Getenv("LETTERHEAD_PATH")),
	}
}

// CompanyProfile is printed on the quotation letterhead and footer.
type CompanyProfile struct {
	Name    string
	Tagline string
	Phone   string
	Email   string
	Address string
}

func GetCompanyProfile() CompanyProfile {
	return CompanyProfile{
		Name:    stringFromEnv("COMPANY_NAME", "MARUTI LAMINATES"),
		Tagline: stringFromEnv("COMPANY_TAGLINE", "Professional Laminates & Interior Solutions"),
		Phone:   stringFromEnv("COMPANY_PHONE", "+91 1234567890"),
		Email:   stringFromEnv("COMPANY_EMAIL", "info@marutilaminates.com"),
		Address: stringFromEnv("COMPANY_ADDRESS", "123 Main Street, City, State - 123456"),
	}
}

// EditWindowConfig restricts when non-admin users may edit quotations.
type EditWindowConfig struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

func GetEditWindowConfig() EditWindowConfig {
	loc, err := time.LoadLocation(stringFromEnv("EDIT_WINDOW_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		loc = time.FixedZone("IST", 5*60*60+30*60)
	}
	return EditWindowConfig{
		Location:  loc,
		StartHour: intFromEnv("EDIT_WINDOW_START_HOUR", 9),
		EndHour:   intFromEnv("EDIT_WINDOW_END_HOUR", 18),
	}
}

// PublicLinkExpiryMonths is how long a shared quotation stays publicly readable.
func PublicLinkExpiryMonths() int {
	return intFromEnv("PUBLIC_LINK_EXPIRY_MONTHS", 3)
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// RateLimitConfig is read from RATE_LIMIT_ENABLED, RATE_LIMIT_MAX_REQUESTS
// and RATE_LIMIT_WINDOW_SECONDS.
type RateLimitConfig struct {
	Enabled bool
	Limit   int64
	Window  time.Duration
}

func GetRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: boolFromEnv("RATE_LIMIT_ENABLED", false),
		Limit:   int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)),
		Window:  time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}
