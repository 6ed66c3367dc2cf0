package app

import (
	"github.com/shopspring/decimal"
)

// CreateProductRequest is the input for adding a product to the catalog.
type CreateProductRequest struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

// UpdatePricesRequest changes a product's sale and cost price.
type UpdatePricesRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

// StockChangeRequest carries a delta for AdjustStock and an absolute
// quantity for SetStock.
type StockChangeRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// DateRangeRequest bounds a listing or report. Both ends are optional
// YYYY-MM-DD dates and inclusive.
type DateRangeRequest struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

type AddEntryRequest struct {
	BatchID   string          `json:"batch_id" validate:"required,uuid"`
	ClientID  string          `json:"client_id" validate:"required,uuid"`
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type UpdateEntryRequest struct {
	EntryID  string          `json:"entry_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CloseBatchRequest struct {
	BatchID     string `json:"batch_id" validate:"required,uuid"`
	DeductStock bool   `json:"deduct_stock"`
}

// EditBatchRequest changes a closed batch. Each edit updates or deletes an
// existing entry (EntryID set) or adds a new one (ClientID and ProductID set).
type EditBatchRequest struct {
	BatchID     string           `json:"batch_id" validate:"required,uuid"`
	DeductStock bool             `json:"deduct_stock"`
	Edits       []EntryEditInput `json:"edits" validate:"required,min=1,dive"`
}

type EntryEditInput struct {
	EntryID   string          `json:"entry_id" validate:"omitempty,uuid"`
	ClientID  string          `json:"client_id" validate:"omitempty,uuid"`
	ProductID string          `json:"product_id" validate:"omitempty,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
	Delete    bool            `json:"delete"`
}

// BillItemInput is a single line on a bill.
type BillItemInput struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CheckItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Delta     decimal.Decimal `json:"delta"`
	Items     []BillItemInput `json:"items" validate:"dive"`
}

type CreateBillRequest struct {
	ClientID string          `json:"client_id" validate:"required,uuid"`
	Date     string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Items    []BillItemInput `json:"items" validate:"required,min=1,dive"`
	Paid     decimal.Decimal `json:"paid"`
}

type ListBillsRequest struct {
	DateRangeRequest
	ClientID       string `json:"client_id" validate:"omitempty,uuid"`
	IncludeDeleted bool   `json:"include_deleted"`
}

type PaymentRequest struct {
	BillID string          `json:"bill_id" validate:"required,uuid"`
	Amount decimal.Decimal `json:"amount"`
}

// VelocityRequest selects the sales window. Zero WindowDays uses the
// configured default; an empty AsOf means the business today.
type VelocityRequest struct {
	AsOf       string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	WindowDays int    `json:"window_days" validate:"omitempty,min=1,max=366"`
}
