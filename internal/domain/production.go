package domain

import "github.com/shopspring/decimal"

// ActionKind identifies the type of inventory mutation an action attempted.
type ActionKind string

const (
	ActionWriteOff   ActionKind = "writeOff"
	ActionAddProduct ActionKind = "addProduct"
)

// ActionStatus is the outcome of a single inventory mutation attempt.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusUpdated ActionStatus = "updated"
	ActionStatusCreated ActionStatus = "created"
	ActionStatusError   ActionStatus = "error"
)

// ActionResult records the outcome of one inventory mutation attempt.
// It is immutable once produced; errors are data here, never panics.
type ActionResult struct {
	Kind      ActionKind       `json:"action"`
	Status    ActionStatus     `json:"status"`
	Material  string           `json:"material,omitempty"`
	Product   string           `json:"product,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Unit      string           `json:"unit,omitempty"`
	Remaining *decimal.Decimal `json:"remaining_quantity,omitempty"`
	Total     *decimal.Decimal `json:"total_quantity,omitempty"`
	ProductID string           `json:"product_id,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// RecipeResult is the per-recipe payload of a ProcessingReport. A run that
// failed before any action was attempted carries Error and no Actions.
type RecipeResult struct {
	RecipeID    string         `json:"recipe_id"`
	ProductName string         `json:"product_name"`
	Actions     []ActionResult `json:"actions,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// HasErrors reports whether any action of the result failed.
func (r RecipeResult) HasErrors() bool {
	if r.Error != "" {
		return true
	}
	for _, a := range r.Actions {
		if a.Status == ActionStatusError {
			return true
		}
	}
	return false
}

// ReportStatus is the aggregate outcome of one stage-change event.
type ReportStatus string

const (
	ReportStatusNoMatch ReportStatus = "no_match"
	ReportStatusSuccess ReportStatus = "success"
	ReportStatusPartial ReportStatus = "partial"
	ReportStatusError   ReportStatus = "error"
)

// ProcessingReport aggregates the per-recipe outcomes of one stage-change
// event. Partial means at least one action was recorded with error status;
// the effects of the successful actions stand regardless.
type ProcessingReport struct {
	Status  ReportStatus   `json:"status"`
	DealID  string         `json:"deal_id,omitempty"`
	StageID string         `json:"stage_id,omitempty"`
	Recipes []RecipeResult `json:"recipes,omitempty"`
}
