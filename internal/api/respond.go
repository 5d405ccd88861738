package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// On failure it has already written the 400 response.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", formatValidationError(err))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{appointment.ErrClinicNotFound, http.StatusNotFound, "clinic_not_found"},
	{appointment.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
	{appointment.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},

	{appointment.ErrUnauthorized, http.StatusForbidden, "unauthorized"},

	{appointment.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{appointment.ErrAlreadyFinalized, http.StatusConflict, "already_finalized"},
	{appointment.ErrNoOpTransition, http.StatusConflict, "no_op_transition"},

	{appointment.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{appointment.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{appointment.ErrClinicClosed, http.StatusUnprocessableEntity, "clinic_closed"},
	{appointment.ErrInvalidOperatingHours, http.StatusUnprocessableEntity, "invalid_operating_hours"},
	{appointment.ErrPastDate, http.StatusUnprocessableEntity, "past_date"},
	{appointment.ErrInvalidSlotTime, http.StatusUnprocessableEntity, "invalid_slot_time"},
	{appointment.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
}

// handleServiceError maps a service error to its HTTP response. Unknown
// errors are logged and hidden behind a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("unhandled service error")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
