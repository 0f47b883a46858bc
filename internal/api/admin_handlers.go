package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"devlend/internal/domain"
	"devlend/internal/export"
	"devlend/internal/models"

	"github.com/rs/zerolog"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultExportDays = 14
	maxExportDays     = 366
)

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.ListAll(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		filtered := make([]models.Booking, 0, len(list))
		for _, b := range list {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

func (s *HTTPServer) transitionHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		ctx, actor := r.Context(), actorFrom(r.Context())
		var booking *models.Booking
		switch action {
		case "approve":
			booking, err = s.bookings.Approve(ctx, actor, id)
		case "reject":
			booking, err = s.bookings.Reject(ctx, actor, id)
		case "pickup":
			booking, err = s.bookings.Pickup(ctx, actor, id)
		case "return":
			booking, err = s.bookings.Return(ctx, actor, id)
		default:
			err = fmt.Errorf("unknown booking action %q", action)
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		zerolog.Ctx(ctx).Info().Int64("booking_id", id).Str("action", action).Msg("booking transition")
		writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
	}
}

// handleAdminExport streams an XLSX of bookings overlapping [from, to).
// Dates are YYYY-MM-DD; to is inclusive in the query.
func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.exportRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := s.bookings.ListInRange(r.Context(), actorFrom(r.Context()), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	wb, err := export.NewWorkbook(list, from, to, s.loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer wb.Close()

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) exportRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	now := time.Now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Validation("Invalid from date; expected YYYY-MM-DD.")
		}
		from = d
	}

	to := from.AddDate(0, 0, defaultExportDays)
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Validation("Invalid to date; expected YYYY-MM-DD.")
		}
		to = d.AddDate(0, 0, 1)
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, domain.Validation("Invalid date range.")
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		return time.Time{}, time.Time{}, domain.Validation("Export range is limited to %d days.", maxExportDays)
	}
	return from, to, nil
}

func (s *HTTPServer) handleAdminResources(w http.ResponseWriter, r *http.Request) {
	list, err := s.resources.ListAll(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consoles": nonNil(list)})
}

func (s *HTTPServer) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := s.resources.Create(r.Context(), actorFrom(r.Context()), req.toModel())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"console": res})
}

func (s *HTTPServer) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateResourceRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := s.resources.SetStatus(r.Context(), actorFrom(r.Context()), id, models.ResourceStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"console": res})
}

func (s *HTTPServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	game, err := s.resources.AddGame(r.Context(), actorFrom(r.Context()), models.Game{
		ResourceID: req.ConsoleID,
		Title:      strings.TrimSpace(req.Title),
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"game": game})
}

func (s *HTTPServer) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.resources.DeleteGame(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
