package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

const (
	DefaultQuantity = 1
	MaxQuantity     = 10
)

// LineInput is one requested cart line before validation.
type LineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Line is a validated cart line.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// QuantityViolation is returned to callers when a line is out of range.
type QuantityViolation struct {
	ProductID    uuid.UUID `json:"product_id"`
	RequestedQty int       `json:"requested_qty"`
	MaxQty       int       `json:"max_qty"`
}

// NormalizeLines defaults missing quantities, merges repeated products and
// enforces the per-product maximum. Input order is preserved.
func NormalizeLines(items []LineInput) ([]Line, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No items provided")
	}

	index := make(map[uuid.UUID]int, len(items))
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if item.Quantity < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be positive for product %s", item.ProductID)
		}
		qty := item.Quantity
		if qty == 0 {
			qty = DefaultQuantity
		}
		if pos, ok := index[item.ProductID]; ok {
			lines[pos].Quantity += qty
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: qty})
	}

	var violations []QuantityViolation
	for _, line := range lines {
		if line.Quantity > MaxQuantity {
			violations = append(violations, QuantityViolation{
				ProductID:    line.ProductID,
				RequestedQty: line.Quantity,
				MaxQty:       MaxQuantity,
			})
		}
	}
	if len(violations) == 0 {
		return lines, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity limit exceeded for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
