package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const (
	CallRequestsPath = "/api/call-requests/"
	TablesPath       = "/api/tables/"
)

var (
	ErrMissingTableNumber = errors.New("table number is required")
	ErrTableNotFound      = errors.New("table not found")
)

// DefaultCallReason is sent when the customer gives none.
const DefaultCallReason = "assistance"

var (
	callReasonKeys      = []string{"reason", "message", "request_type"}
	callTableNumberKeys = []string{"table_number", "table"}
	callTableIDKeys     = []string{"table", "table_id"}
)

func callCandidates(reason string, tableKeys []string, table interface{}) []Candidate {
	var candidates []Candidate
	for _, reasonKey := range callReasonKeys {
		for _, tableKey := range tableKeys {
			candidates = append(candidates, Candidate{
				Name: reasonKey + "/" + tableKey,
				Path: CallRequestsPath,
				Body: map[string]interface{}{
					reasonKey: reason,
					tableKey:  table,
				},
			})
		}
	}
	return dedupe(candidates)
}

// SubmitCallRequest asks for a waiter at a table identified by its printed
// number. When every number-based body is rejected, the number is resolved
// to the backend id through the table list and id-based bodies are tried.
func (s *Submitter) SubmitCallRequest(ctx context.Context, req models.CallRequest) (*models.SubmitResult, error) {
	number := strings.TrimSpace(req.TableNumber)
	if number == "" {
		return nil, ErrMissingTableNumber
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultCallReason
	}

	result, err := s.TryInOrder(ctx, callCandidates(reason, callTableNumberKeys, number))
	if err == nil {
		return result, nil
	}
	if !IsShapeRejection(err) {
		return nil, fmt.Errorf("failed to call waiter: %w", err)
	}

	table, lookupErr := s.FindTable(ctx, number)
	if lookupErr != nil {
		s.logger.WithError(lookupErr).WithField("table_number", number).Warn("Could not resolve table id")
		return nil, fmt.Errorf("failed to call waiter: %w", err)
	}

	result, err = s.TryInOrder(ctx, callCandidates(reason, callTableIDKeys, table.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to call waiter: %w", err)
	}
	return result, nil
}

// ListTables reads every page of the backend table list, anonymously when
// the session's credentials are refused.
func (s *Submitter) ListTables(ctx context.Context) ([]models.Table, error) {
	records, err := s.client.FetchAllPages(ctx, TablesPath, apiclient.Options{})
	if apiclient.IsAuthError(err) {
		records, err = s.client.FetchAllPages(ctx, TablesPath, apiclient.Options{NoAuth: true})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]models.Table, 0, len(records))
	for _, rec := range records {
		if table, ok := toTable(rec); ok {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func (s *Submitter) FindTable(ctx context.Context, number string) (*models.Table, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if strings.EqualFold(tables[i].Number, number) {
			return &tables[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, number)
}

func toTable(rec apiclient.Record) (models.Table, bool) {
	id, err := cast.ToInt64E(rec["id"])
	if err != nil || id <= 0 {
		return models.Table{}, false
	}
	table := models.Table{ID: id, IsActive: true}
	for _, key := range []string{"number", "table_number", "name"} {
		if v, ok := rec[key]; ok && v != nil {
			if n := strings.TrimSpace(cast.ToString(v)); n != "" {
				table.Number = n
				break
			}
		}
	}
	for _, key := range []string{"seats", "capacity"} {
		if seats, err := cast.ToIntE(rec[key]); err == nil && seats > 0 {
			table.Seats = seats
			break
		}
	}
	if active, ok := rec["is_active"]; ok && active != nil {
		table.IsActive = cast.ToBool(active)
	}
	return table, table.Number != ""
}
