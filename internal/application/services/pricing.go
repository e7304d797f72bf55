package services

import (
	"strings"

	"github.com/samber/lo"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/utils"
)

// Totals is the priced summary of a quotation. All values are rounded to 2 decimals.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
}

// lineItems validates inputs and prices each line.
func lineItems(inputs []models.LineItemInput) ([]models.QuotationItem, error) {
	items := make([]models.QuotationItem, 0, len(inputs))
	for i, in := range inputs {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			return nil, appErrors.NewValidationError("items", "every item needs a description")
		}
		if in.Quantity <= 0 {
			return nil, appErrors.NewValidationError("items", "quantity must be greater than zero")
		}
		if in.UnitPrice < 0 {
			return nil, appErrors.NewValidationError("items", "unit price must not be negative")
		}
		items = append(items, models.QuotationItem{
			ID:          utils.GenerateID(),
			Position:    i + 1,
			Description: desc,
			Quantity:    in.Quantity,
			UnitPrice:   utils.RoundMoney(in.UnitPrice),
			Amount:      utils.RoundMoney(in.Quantity * in.UnitPrice),
		})
	}
	return items, nil
}

// computeTotals applies the discount to the subtotal and the tax to what remains.
func computeTotals(items []models.QuotationItem, discountType string, discountValue, taxRate float64) (Totals, error) {
	var t Totals
	t.Subtotal = utils.RoundMoney(lo.SumBy(items, func(it models.QuotationItem) float64 { return it.Amount }))

	switch discountType {
	case "", constants.DiscountNone:
		if discountValue != 0 {
			return t, appErrors.NewValidationError("discount_value", "discount value requires a discount type")
		}
	case constants.DiscountPercent:
		if discountValue < 0 || discountValue > 100 {
			return t, appErrors.NewValidationError("discount_value", "percent discount must be between 0 and 100")
		}
		t.DiscountAmount = utils.RoundMoney(t.Subtotal * discountValue / 100)
	case constants.DiscountAmount:
		if discountValue < 0 || discountValue > t.Subtotal {
			return t, appErrors.NewValidationError("discount_value", "discount must be between 0 and the subtotal")
		}
		t.DiscountAmount = utils.RoundMoney(discountValue)
	default:
		return t, appErrors.NewValidationError("discount_type", "discount type must be none, percent or amount")
	}

	if taxRate < 0 || taxRate > 100 {
		return t, appErrors.NewValidationError("tax_rate", "tax rate must be between 0 and 100")
	}
	taxable := t.Subtotal - t.DiscountAmount
	t.TaxAmount = utils.RoundMoney(taxable * taxRate / 100)
	t.Total = utils.RoundMoney(taxable + t.TaxAmount)
	return t, nil
}

// applyTotals prices q in place from its items and discount settings.
func applyTotals(q *models.Quotation) error {
	if q.DiscountType == "" {
		q.DiscountType = constants.DiscountNone
	}
	t, err := computeTotals(q.Items, q.DiscountType, q.DiscountValue, q.TaxRate)
	if err != nil {
		return err
	}
	q.Subtotal, q.DiscountAmount, q.TaxAmount, q.Total = t.Subtotal, t.DiscountAmount, t.TaxAmount, t.Total
	return nil
}
