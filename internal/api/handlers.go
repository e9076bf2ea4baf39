package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/logging"
)

const notificationsLimit = 50

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actorID(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		// a missing or malformed page is the first page
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 1
		}

		details, err := svc.ListAppointments(r.Context(), userID, page)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponses(details, svc.Now(), svc.Policy()))
	}
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actorID(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), appointment.BookInput{
			RequesterID: userID.String(),
			ProviderID:  req.ProviderID,
			Date:        req.Date,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, svc.Now(), svc.Policy()))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actorID(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), appointment.CancelInput{
			ActorID:       userID.String(),
			AppointmentID: chi.URLParam(r, "id"),
		})
		if err != nil && !(errors.Is(err, appointment.ErrDispatchFailed) && appt != nil) {
			handleServiceError(w, r, err)
			return
		}

		resp := toAppointmentResponse(appt, svc.Now(), svc.Policy())
		if err != nil {
			// the cancellation is committed; only the mail is missing
			resp.Warning = appointment.ErrDispatchFailed.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actorID(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		details, err := svc.ListSchedule(r.Context(), appointment.ScheduleInput{
			ProviderID: userID.String(),
			Date:       r.URL.Query().Get("date"),
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponses(details, svc.Now(), svc.Policy()))
	}
}

func listNotificationsHandler(reader NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actorID(r)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		notes, err := reader.ListUnread(r.Context(), userID, notificationsLimit)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]NotificationResponse, len(notes))
		for i, n := range notes {
			resp[i] = NotificationResponse{ID: n.ID, Content: n.Content, Read: n.Read, CreatedAt: n.CreatedAt}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *appointment.ValidationError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: "request fields failed validation",
			Fields:  verr.Fields,
		})
	case errors.Is(err, appointment.ErrInvalidProvider):
		writeError(w, http.StatusUnauthorized, "invalid_provider", err.Error())
	case errors.Is(err, appointment.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", appointment.ErrSlotUnavailable.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrTooLateToCancel):
		writeError(w, http.StatusUnprocessableEntity, "too_late_to_cancel", err.Error())
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthenticated", headerUserID+" header must carry a valid user id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
