package bot

import (
	"errors"

	"devlend/internal/domain"
)

// errorMessage turns a service error into the reply shown in the admin chat.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, domain.ErrNoResourceAvailable):
		return "⚠️ " + domain.Message(err, "No free device for this booking.")
	case errors.Is(err, domain.ErrInvalidTransition):
		return "⚠️ " + domain.Message(err, "The booking is not in the right state for this action.")
	case errors.Is(err, domain.ErrNotFound):
		return "⚠️ " + domain.Message(err, "Booking not found.")
	case errors.Is(err, domain.ErrForbidden):
		return "⛔ This chat is not allowed to manage bookings."
	case errors.Is(err, domain.ErrValidation):
		return "⚠️ " + domain.Message(err, "Invalid request.")
	}

	return "❌ Something went wrong while processing the request. Please try again later."
}
