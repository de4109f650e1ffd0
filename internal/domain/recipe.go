package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is a single material requirement of a tech card, expressed
// per unit of finished output.
type Ingredient struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit,omitempty"`
	Code     string          `json:"code"`
}

// Recipe is a tech card: the bill of materials for one finished product
// plus the pipeline stage that triggers its production.
type Recipe struct {
	ID             string       `json:"id"`
	ProductName    string       `json:"product_name"`
	ProductCode    string       `json:"product_code,omitempty"`
	Description    string       `json:"description,omitempty"`
	TriggerStageID string       `json:"trigger_stage_id,omitempty"`
	OutputQuantity int          `json:"output_quantity"`
	Ingredients    []Ingredient `json:"ingredients"`
	CreatedAt      time.Time    `json:"created_at,omitempty"`
}

// FinishedGoodCode returns the catalog code used to credit the finished
// product, deriving one from the recipe ID when none was declared.
func (r Recipe) FinishedGoodCode() string {
	if r.ProductCode != "" {
		return r.ProductCode
	}
	return "FINISHED_" + r.ID
}
