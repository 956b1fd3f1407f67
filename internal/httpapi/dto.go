package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"venuebook/backend/internal/domain"
)

type createBookingRequest struct {
	ItemID          string    `json:"item_id" validate:"required,uuid"`
	BookingTime     time.Time `json:"booking_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=15,max=480"`
	CustomerName    string    `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerEmail   string    `json:"customer_email" validate:"required,email"`
	Notes           string    `json:"notes" validate:"max=500"`
}

func (r createBookingRequest) toDomain() domain.BookingRequest {
	return domain.BookingRequest{
		ItemID:          r.ItemID,
		BookingTime:     r.BookingTime,
		DurationMinutes: r.DurationMinutes,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		Notes:           r.Notes,
	}
}

// cancelBookingRequest may be omitted entirely by an admin caller.
type cancelBookingRequest struct {
	CustomerEmail string `json:"customer_email"`
}

type availabilityRequest struct {
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	IsActive  *bool  `json:"is_active"`
}

type pricingRequest struct {
	PricingType   domain.PricingType `json:"pricing_type" validate:"required"`
	Configuration json.RawMessage    `json:"configuration" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBody runs the struct tags of dto and reports every failing field
// as a validation error.
func validateBody(dto any) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, domain.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return domain.Validation("Validation failed", details...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
