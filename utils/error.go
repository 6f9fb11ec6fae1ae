package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindValidationFailed ErrorKind = "VALIDATION_FAILED"
	KindConflict         ErrorKind = "CONFLICT"
	KindTooManyImages    ErrorKind = "TOO_MANY_IMAGES"
	KindInvalidImage     ErrorKind = "INVALID_IMAGE"
	KindImageTooLarge    ErrorKind = "IMAGE_TOO_LARGE"
	KindRenderFailed     ErrorKind = "RENDER_FAILED"
	KindStorageFailed    ErrorKind = "STORAGE_FAILED"
	KindUnauthorized     ErrorKind = "UNAUTHORIZED"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindInternal         ErrorKind = "INTERNAL"
)

// AppError carries enough detail for the API to say which entity, item or
// constraint caused a failure.
type AppError struct {
	Kind    ErrorKind
	Message string
	Field   string
	Index   *int
	Count   *int64
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Index != nil {
		msg = fmt.Sprintf("item %d: %s", *e.Index+1, msg)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrorRecordNotFound) {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// PublicMessage is Error without the wrapped cause.
func (e *AppError) PublicMessage() string {
	if e.Index != nil {
		return fmt.Sprintf("item %d: %s", *e.Index+1, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) AtIndex(i int) *AppError {
	e.Index = &i
	return e
}

func NotFound(field string, message string) *AppError {
	return &AppError{Kind: KindNotFound, Field: field, Message: message, Err: ErrorRecordNotFound}
}

func Validation(field string, message string) *AppError {
	return &AppError{Kind: KindValidationFailed, Field: field, Message: message}
}

func Conflict(message string, count int64) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Count: &count}
}

func TooManyImages(index int, max int) *AppError {
	e := &AppError{Kind: KindTooManyImages, Field: "images", Message: fmt.Sprintf("maximum %d images allowed per item", max)}
	return e.AtIndex(index)
}

func InvalidImage(message string) *AppError {
	return &AppError{Kind: KindInvalidImage, Field: "images", Message: message}
}

func ImageTooLarge(size int64, max int64) *AppError {
	return &AppError{Kind: KindImageTooLarge, Field: "images", Message: fmt.Sprintf("image is %d bytes, limit is %d", size, max)}
}

func RenderFailed(err error) *AppError {
	return &AppError{Kind: KindRenderFailed, Message: "pdf generation failed", Err: err}
}

func StorageFailed(op string, path string, err error) *AppError {
	return &AppError{Kind: KindStorageFailed, Field: path, Message: "storage " + op + " failed", Err: err}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// KindOf returns KindInternal for errors that are not an *AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
