package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/clock"
)

// BookInput is the raw booking request as it arrives from the transport.
type BookInput struct {
	RequesterID string `json:"requester_id" validate:"required,uuid"`
	ProviderID  string `json:"provider_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,isodate"`
}

// BookCommand is a BookInput that passed validation.
type BookCommand struct {
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	Date        time.Time
}

type CancelInput struct {
	ActorID       string `json:"user_id" validate:"required,uuid"`
	AppointmentID string `json:"id" validate:"required,uuid"`
}

type CancelCommand struct {
	ActorID       uuid.UUID
	AppointmentID uuid.UUID
}

type ScheduleInput struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,isodate"`
}

type ScheduleQuery struct {
	ProviderID uuid.UUID
	Day        time.Time
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := clock.ParseDate(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("register isodate validation: %v", err))
	}
	return v
}

func ValidateBookInput(in BookInput) (BookCommand, error) {
	trim(&in.RequesterID, &in.ProviderID, &in.Date)
	if err := check(in); err != nil {
		return BookCommand{}, err
	}

	date, _ := clock.ParseDate(in.Date)
	return BookCommand{
		RequesterID: uuid.MustParse(in.RequesterID),
		ProviderID:  uuid.MustParse(in.ProviderID),
		Date:        date,
	}, nil
}

func ValidateCancelInput(in CancelInput) (CancelCommand, error) {
	trim(&in.ActorID, &in.AppointmentID)
	if err := check(in); err != nil {
		return CancelCommand{}, err
	}

	return CancelCommand{
		ActorID:       uuid.MustParse(in.ActorID),
		AppointmentID: uuid.MustParse(in.AppointmentID),
	}, nil
}

func ValidateScheduleInput(in ScheduleInput) (ScheduleQuery, error) {
	trim(&in.ProviderID, &in.Date)
	if err := check(in); err != nil {
		return ScheduleQuery{}, err
	}

	day, _ := clock.ParseDate(in.Date)
	return ScheduleQuery{
		ProviderID: uuid.MustParse(in.ProviderID),
		Day:        day,
	}, nil
}

func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: []FieldError{{Field: "body", Rule: "invalid"}}}
	}

	verr := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return verr
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
