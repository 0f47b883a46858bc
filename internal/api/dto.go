package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"devlend/internal/domain"
	"devlend/internal/models"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type submitBookingRequest struct {
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	ConsoleID *int64    `json:"console_id" validate:"omitempty,gt=0"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

func (r submitBookingRequest) toModel() models.SubmitRequest {
	return models.SubmitRequest{
		StartAt:    r.StartAt,
		EndAt:      r.EndAt,
		ResourceID: r.ConsoleID,
		Notes:      strings.TrimSpace(r.Notes),
	}
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

type createResourceRequest struct {
	Label       string `json:"label" validate:"required,max=100"`
	PricePerDay *int64 `json:"price_per_day" validate:"omitempty,gte=0"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Status      string `json:"status" validate:"omitempty,oneof=available maintenance"`
}

func (r createResourceRequest) toModel() models.CreateResourceRequest {
	return models.CreateResourceRequest{
		Label:     r.Label,
		DailyRate: r.PricePerDay,
		ImageURL:  r.ImageURL,
		Status:    models.ResourceStatus(r.Status),
	}
}

type updateResourceRequest struct {
	Status string `json:"status" validate:"required,oneof=available maintenance"`
}

type createGameRequest struct {
	ConsoleID int64  `json:"console_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=200"`
	ImageURL  string `json:"image_url" validate:"omitempty,url"`
}

// RequestValidator checks decoded request bodies and reports problems by
// their JSON field names.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (v *RequestValidator) Validate(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return domain.Validation("Invalid request.")
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return domain.Validation("%s", strings.Join(messages, " "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be a positive number.", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must not be negative.", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL.", fe.Field())
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}

// decodeJSON reads a single JSON object into dst and validates it.
func (s *HTTPServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("Request body is required.")
		}
		return domain.Validation("Invalid JSON body.")
	}
	return s.validator.Validate(dst)
}
