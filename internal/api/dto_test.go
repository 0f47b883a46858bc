package api

import (
	"testing"

	"devlend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()
	negative := int64(-5)

	tests := []struct {
		name    string
		req     any
		wantMsg string
	}{
		{"valid resource", &createResourceRequest{Label: "PS5 #2", Status: "available"}, ""},
		{"missing label", &createResourceRequest{}, "label is required."},
		{"negative price", &createResourceRequest{Label: "PS5", PricePerDay: &negative}, "price_per_day must not be negative."},
		{"bad url", &createResourceRequest{Label: "PS5", ImageURL: "not a url"}, "image_url must be a valid URL."},
		{"long notes", &submitBookingRequest{Notes: string(make([]byte, 1001))}, "notes must be at most 1000 characters."},
		{"game without console", &createGameRequest{Title: "Zelda"}, "console_id is required."},
		{"two problems", &createGameRequest{}, "console_id is required. title is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.wantMsg, domain.Message(err, ""))
		})
	}
}

func TestSubmitRequestToModel(t *testing.T) {
	id := int64(3)
	req := submitBookingRequest{ConsoleID: &id, Notes: "  late pickup  "}
	m := req.toModel()
	assert.Equal(t, &id, m.ResourceID)
	assert.Equal(t, "late pickup", m.Notes)
}
