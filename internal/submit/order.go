package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const OrdersPath = "/api/orders/"

var (
	ErrEmptyOrder       = errors.New("order has no items")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrMissingTable     = errors.New("dine-in orders need a table")
	ErrInvalidLine      = errors.New("invalid order line")
)

var (
	orderItemsKeys = []string{"items", "line_items", "products"}
	orderIDKeys    = []string{"product", "product_id", "id"}
	orderQtyKeys   = []string{"quantity", "qty"}
	orderTypeKeys  = []string{"order_type", "type"}
	orderTableKeys = []string{"table", "table_id", "table_number"}
)

func ValidateOrder(order models.OrderRequest) error {
	if !order.OrderType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, order.OrderType)
	}
	if len(order.Lines) == 0 {
		return ErrEmptyOrder
	}
	for _, line := range order.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return fmt.Errorf("%w: product %d quantity %d", ErrInvalidLine, line.ProductID, line.Quantity)
		}
	}
	if order.OrderType == models.OrderTypeDineIn && strings.TrimSpace(order.TableNumber) == "" && order.TableID <= 0 {
		return ErrMissingTable
	}
	return nil
}

// OrderCandidates expands one logical order into every body shape the
// backend has been seen to accept, in a fixed order without duplicates.
func OrderCandidates(order models.OrderRequest) []Candidate {
	var candidates []Candidate
	for _, itemsKey := range orderItemsKeys {
		for _, idKey := range orderIDKeys {
			for _, qtyKey := range orderQtyKeys {
				for _, typeKey := range orderTypeKeys {
					for _, tableKey := range orderTableKeys {
						for _, withNotes := range []bool{true, false} {
							body := map[string]interface{}{
								itemsKey: orderLines(order.Lines, idKey, qtyKey, withNotes),
								typeKey:  string(order.OrderType),
							}
							if table, ok := tableValue(order, tableKey); ok {
								body[tableKey] = table
							}
							if order.Notes != "" {
								body["notes"] = order.Notes
							}

							name := strings.Join([]string{itemsKey, idKey, qtyKey, typeKey, tableKey}, "/")
							if !withNotes {
								name += "/no-line-notes"
							}
							candidates = append(candidates, Candidate{Name: name, Path: OrdersPath, Body: body})
						}
					}
				}
			}
		}
	}
	return dedupe(candidates)
}

func orderLines(lines []models.OrderLine, idKey, qtyKey string, withNotes bool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, line := range lines {
		entry := map[string]interface{}{
			idKey:  line.ProductID,
			qtyKey: line.Quantity,
		}
		if withNotes && line.Notes != "" {
			entry["notes"] = line.Notes
		}
		out = append(out, entry)
	}
	return out
}

// tableValue picks what goes under key: ids for id-style keys, the printed
// number for table_number. "table" falls back to the number when no id is known.
func tableValue(order models.OrderRequest, key string) (interface{}, bool) {
	number := strings.TrimSpace(order.TableNumber)
	switch key {
	case "table_number":
		return number, number != ""
	case "table_id":
		return order.TableID, order.TableID > 0
	default:
		if order.TableID > 0 {
			return order.TableID, true
		}
		return number, number != ""
	}
}

// SubmitOrder validates the order and posts it shape by shape.
func (s *Submitter) SubmitOrder(ctx context.Context, order models.OrderRequest) (*models.SubmitResult, error) {
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}
	result, err := s.TryInOrder(ctx, OrderCandidates(order))
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}
	return result, nil
}
