package submit

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func TestOrderCandidates(t *testing.T) {
	dineIn := models.OrderRequest{
		OrderType:   models.OrderTypeDineIn,
		TableNumber: "5",
		Lines:       []models.OrderLine{{ProductID: 3, Quantity: 2}},
	}

	t.Run("first shape", func(t *testing.T) {
		got := OrderCandidates(dineIn)
		require.NotEmpty(t, got)
		assert.Equal(t, "items/product/quantity/order_type/table", got[0].Name)
		assert.Equal(t, map[string]interface{}{
			"items":      []map[string]interface{}{{"product": int64(3), "quantity": 2}},
			"order_type": "dine_in",
			"table":      "5",
		}, got[0].Body)
	})

	t.Run("line notes double the shapes", func(t *testing.T) {
		withNotes := dineIn
		withNotes.Lines = []models.OrderLine{{ProductID: 3, Quantity: 2, Notes: "no onion"}}
		assert.Len(t, OrderCandidates(dineIn), 3*3*2*2*3)
		assert.Len(t, OrderCandidates(withNotes), 3*3*2*2*3*2)
	})

	t.Run("takeaway has no table variants", func(t *testing.T) {
		takeaway := models.OrderRequest{
			OrderType: models.OrderTypeTakeaway,
			Lines:     []models.OrderLine{{ProductID: 1, Quantity: 1}},
			Notes:     "extra napkins",
		}
		got := OrderCandidates(takeaway)
		assert.Len(t, got, 3*3*2*2)
		for _, c := range got {
			assert.Equal(t, "extra napkins", c.Body["notes"])
		}
	})

	t.Run("no duplicate bodies", func(t *testing.T) {
		seen := map[string]bool{}
		for _, c := range OrderCandidates(dineIn) {
			encoded, err := json.Marshal(c.Body)
			require.NoError(t, err)
			assert.False(t, seen[string(encoded)], c.Name)
			seen[string(encoded)] = true
		}
	})

	t.Run("table id preferred for id keys", func(t *testing.T) {
		withID := dineIn
		withID.TableID = 42
		got := OrderCandidates(withID)
		assert.Equal(t, int64(42), got[0].Body["table"])
		assert.Equal(t, int64(42), got[1].Body["table_id"])
		assert.Equal(t, "5", got[2].Body["table_number"])
	})
}

func TestValidateOrder(t *testing.T) {
	line := []models.OrderLine{{ProductID: 1, Quantity: 1}}
	assert.NoError(t, ValidateOrder(models.OrderRequest{OrderType: models.OrderTypeTakeaway, Lines: line}))
	assert.ErrorIs(t, ValidateOrder(models.OrderRequest{OrderType: "pickup", Lines: line}), ErrInvalidOrderType)
	assert.ErrorIs(t, ValidateOrder(models.OrderRequest{OrderType: models.OrderTypeDelivery}), ErrEmptyOrder)
	assert.ErrorIs(t, ValidateOrder(models.OrderRequest{OrderType: models.OrderTypeDineIn, Lines: line}), ErrMissingTable)
	assert.ErrorIs(t, ValidateOrder(models.OrderRequest{
		OrderType: models.OrderTypeTakeaway,
		Lines:     []models.OrderLine{{ProductID: 1, Quantity: 0}},
	}), ErrInvalidLine)
}

func TestReservationCandidates(t *testing.T) {
	r := models.ReservationRequest{Name: " Sara ", Phone: "0100", Guests: 4, Date: "2026-11-02", Time: "19:30"}
	got := ReservationCandidates(r)
	require.Len(t, got, 4*3*3*4)

	assert.Equal(t, map[string]interface{}{
		"customer_name":  "Sara",
		"customer_phone": "0100",
		"guests":         4,
		"date":           "2026-11-02",
		"time":           "19:30",
	}, got[0].Body)
	assert.Equal(t, "2026-11-02T19:30", got[len(got)-1].Body["datetime"])
}

func TestValidateReservation(t *testing.T) {
	valid := models.ReservationRequest{Name: "Sara", Phone: "0100", Guests: 2, Date: "2026-11-02", Time: "19:30"}
	assert.NoError(t, ValidateReservation(valid))

	for name, mutate := range map[string]func(*models.ReservationRequest){
		"name":   func(r *models.ReservationRequest) { r.Name = " " },
		"phone":  func(r *models.ReservationRequest) { r.Phone = "" },
		"guests": func(r *models.ReservationRequest) { r.Guests = 0 },
		"date":   func(r *models.ReservationRequest) { r.Date = "02/11/2026" },
		"time":   func(r *models.ReservationRequest) { r.Time = "7pm" },
	} {
		r := valid
		mutate(&r)
		assert.ErrorIs(t, ValidateReservation(r), ErrInvalidReservation, name)
	}
}

func TestSubmitReservation_Combined(t *testing.T) {
	s, _ := newSubmitter(t, "", func(n int, a attempt) int {
		if _, ok := a.Body["reservation_datetime"]; ok {
			return http.StatusCreated
		}
		return http.StatusBadRequest
	})

	result, err := s.SubmitReservation(context.Background(), models.ReservationRequest{
		Name: "Omar", Phone: "0111", Guests: 3, Date: "2026-12-24", Time: "20:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "customer_name/customer_phone/guests/reservation_datetime", result.Shape)
}

func TestSubmitCallRequest_ResolvesTableID(t *testing.T) {
	s, rec := newSubmitter(t, "", func(n int, a attempt) int {
		if a.Path == CallRequestsPath && a.Body["table_id"] == 12.0 {
			return http.StatusCreated
		}
		return http.StatusBadRequest
	})

	result, err := s.SubmitCallRequest(context.Background(), models.CallRequest{TableNumber: "7"})
	require.NoError(t, err)
	assert.Equal(t, "reason/table_id", result.Shape)

	var numberShapes, idShapes int
	for _, a := range rec.all() {
		if a.Path != CallRequestsPath {
			continue
		}
		if a.Body["table"] == "7" || a.Body["table_number"] == "7" {
			numberShapes++
		} else {
			idShapes++
		}
		assert.Equal(t, DefaultCallReason, firstOf(a.Body, callReasonKeys))
	}
	assert.Equal(t, 6, numberShapes)
	assert.Equal(t, 2, idShapes)
}

func TestSubmitCallRequest_StaleTokenStillResolvesTableID(t *testing.T) {
	s, rec := newSubmitter(t, "stale", func(n int, a attempt) int {
		if a.Auth {
			return http.StatusUnauthorized
		}
		if a.Body["table"] == 12.0 || a.Body["table_id"] == 12.0 {
			return http.StatusCreated
		}
		return http.StatusBadRequest
	})

	result, err := s.SubmitCallRequest(context.Background(), models.CallRequest{TableNumber: "7"})
	require.NoError(t, err)
	assert.Equal(t, "reason/table", result.Shape)

	attempts := rec.all()
	last := attempts[len(attempts)-1]
	assert.False(t, last.Auth)
	assert.Equal(t, 12.0, last.Body["table"])
}

func TestSubmitCallRequest_UnknownTable(t *testing.T) {
	s, _ := newSubmitter(t, "", func(int, attempt) int { return http.StatusBadRequest })

	_, err := s.SubmitCallRequest(context.Background(), models.CallRequest{TableNumber: "99", Reason: "bill"})
	require.Error(t, err)
	assert.True(t, IsShapeRejection(err))
}

func TestSubmitCallRequest_MissingNumber(t *testing.T) {
	s, _ := newSubmitter(t, "", func(int, attempt) int { return http.StatusOK })
	_, err := s.SubmitCallRequest(context.Background(), models.CallRequest{TableNumber: "  "})
	assert.ErrorIs(t, err, ErrMissingTableNumber)
}

func TestToTable(t *testing.T) {
	table, ok := toTable(apiclient.Record{"id": 3.0, "table_number": 8.0, "capacity": "4", "is_active": false})
	require.True(t, ok)
	assert.Equal(t, models.Table{ID: 3, Number: "8", Seats: 4, IsActive: false}, table)

	_, ok = toTable(apiclient.Record{"number": "1"})
	assert.False(t, ok)
}

func firstOf(body map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := body[k]; ok {
			return v
		}
	}
	return nil
}
