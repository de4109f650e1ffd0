package domain

import "github.com/shopspring/decimal"

// StockItem is a catalog product as seen through the CRM client.
type StockItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Quantity decimal.Decimal `json:"quantity"`
}

// NewStockItem describes a catalog product to be created when a finished
// good has no existing catalog entry.
type NewStockItem struct {
	Name     string          `json:"name"`
	Code     string          `json:"code"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Deal is the subset of a CRM deal the production flow needs.
type Deal struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	StageID string `json:"stage_id"`
}

// DealProductRow is one product line attached to a deal.
type DealProductRow struct {
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// DealStage is a pipeline stage of the deal funnel.
type DealStage struct {
	StatusID string `json:"status_id"`
	Name     string `json:"name"`
}
