/*
feemodel.go - JSON to FeeModel conversion

PURPOSE:
  Lets the platform fee structure be configured without code changes - the
  shop owner keeps the marketplace's current rates in a small JSON document,
  and the server loads it at startup.

JSON SCHEMA (percentages, not fractions):
  {
    "transaction_percent": 6.5,
    "payment_percent": 4,
    "payment_fixed": 0.20,
    "ad_percent": 15
  }

  Missing fields fall back to DefaultFeeModel values.
*/
package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeModelJSON is the JSON representation of a fee model.
type FeeModelJSON struct {
	TransactionPercent *float64 `json:"transaction_percent,omitempty"`
	PaymentPercent     *float64 `json:"payment_percent,omitempty"`
	PaymentFixed       *float64 `json:"payment_fixed,omitempty"`
	AdPercent          *float64 `json:"ad_percent,omitempty"`
}

// LoadFeeModel parses a JSON fee model, applying defaults for missing fields.
func LoadFeeModel(data []byte) (FeeModel, error) {
	var cfg FeeModelJSON
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FeeModel{}, fmt.Errorf("invalid fee model config: %w", err)
	}

	model := DefaultFeeModel()
	if cfg.TransactionPercent != nil {
		model.TransactionRate = percentToRate(*cfg.TransactionPercent)
	}
	if cfg.PaymentPercent != nil {
		model.PaymentRate = percentToRate(*cfg.PaymentPercent)
	}
	if cfg.PaymentFixed != nil {
		model.PaymentFixed = decimal.NewFromFloat(*cfg.PaymentFixed)
	}
	if cfg.AdPercent != nil {
		model.AdRate = percentToRate(*cfg.AdPercent)
	}
	return model, nil
}

func percentToRate(percent float64) decimal.Decimal {
	return decimal.NewFromFloat(percent).Div(oneHundred)
}
