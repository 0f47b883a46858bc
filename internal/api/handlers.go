package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"devlend/internal/domain"
)

func (s *HTTPServer) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	list, err := s.resources.ListCatalogue(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consoles": nonNil(list)})
}

func (s *HTTPServer) handleCatalogueDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	detail, err := s.resources.Detail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"console": detail})
}

// handleAvailability answers whether a window can be satisfied, optionally
// on one device (console_id, or resource_id).
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startRaw := strings.TrimSpace(q.Get("start_at"))
	endRaw := strings.TrimSpace(q.Get("end_at"))
	if startRaw == "" || endRaw == "" {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "start_at and end_at query params are required.")
		return
	}

	start, err1 := time.Parse(time.RFC3339, startRaw)
	end, err2 := time.Parse(time.RFC3339, endRaw)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "Invalid date range.")
		return
	}

	var resourceID *int64
	rawID := q.Get("console_id")
	if rawID == "" {
		rawID = q.Get("resource_id")
	}
	if rawID != "" {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "Invalid console_id.")
			return
		}
		resourceID = &id
	}

	result, err := s.bookings.CheckAvailability(r.Context(), start, end, resourceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req submitBookingRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "start_at and end_at are required.")
		return
	}

	booking, err := s.bookings.SubmitBooking(r.Context(), actorFrom(r.Context()), req.toModel())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.ListMine(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	list, err := s.notes.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	unread, err := s.notes.UnreadCount(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(list), "unread": unread})
}

func (s *HTTPServer) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.notes.MarkRead(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handleNotificationsReadAll(w http.ResponseWriter, r *http.Request) {
	if err := s.notes.MarkAllRead(r.Context(), actorFrom(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.Profile(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": user})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := s.users.UpdateName(r.Context(), actorFrom(r.Context()), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": user})
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
