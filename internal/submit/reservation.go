package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const ReservationsPath = "/api/reservations/"

var ErrInvalidReservation = errors.New("invalid reservation")

var (
	reservationNameKeys   = []string{"customer_name", "name", "full_name"}
	reservationPhoneKeys  = []string{"customer_phone", "phone", "phone_number"}
	reservationGuestsKeys = []string{"guests", "party_size", "number_of_guests", "guest_count"}
)

type whenShape struct {
	name  string
	apply func(body map[string]interface{}, date, clock string)
}

var reservationWhenShapes = []whenShape{
	{"date+time", func(body map[string]interface{}, date, clock string) {
		body["date"] = date
		body["time"] = clock
	}},
	{"reservation_date+reservation_time", func(body map[string]interface{}, date, clock string) {
		body["reservation_date"] = date
		body["reservation_time"] = clock
	}},
	{"reservation_datetime", func(body map[string]interface{}, date, clock string) {
		body["reservation_datetime"] = date + "T" + clock
	}},
	{"datetime", func(body map[string]interface{}, date, clock string) {
		body["datetime"] = date + "T" + clock
	}},
}

func ValidateReservation(r models.ReservationRequest) error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidReservation)
	case strings.TrimSpace(r.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidReservation)
	case r.Guests <= 0:
		return fmt.Errorf("%w: guests must be positive", ErrInvalidReservation)
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidReservation)
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return fmt.Errorf("%w: time must be HH:MM", ErrInvalidReservation)
	}
	return nil
}

// ReservationCandidates permutes field names and the date/time layout.
func ReservationCandidates(r models.ReservationRequest) []Candidate {
	var candidates []Candidate
	for _, when := range reservationWhenShapes {
		for _, nameKey := range reservationNameKeys {
			for _, phoneKey := range reservationPhoneKeys {
				for _, guestsKey := range reservationGuestsKeys {
					body := map[string]interface{}{
						nameKey:   strings.TrimSpace(r.Name),
						phoneKey:  strings.TrimSpace(r.Phone),
						guestsKey: r.Guests,
					}
					when.apply(body, r.Date, r.Time)
					if r.Notes != "" {
						body["notes"] = r.Notes
					}
					candidates = append(candidates, Candidate{
						Name: strings.Join([]string{nameKey, phoneKey, guestsKey, when.name}, "/"),
						Path: ReservationsPath,
						Body: body,
					})
				}
			}
		}
	}
	return dedupe(candidates)
}

func (s *Submitter) SubmitReservation(ctx context.Context, r models.ReservationRequest) (*models.SubmitResult, error) {
	if err := ValidateReservation(r); err != nil {
		return nil, err
	}
	result, err := s.TryInOrder(ctx, ReservationCandidates(r))
	if err != nil {
		return nil, fmt.Errorf("failed to submit reservation: %w", err)
	}
	return result, nil
}
