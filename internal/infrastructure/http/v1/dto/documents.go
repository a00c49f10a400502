package dto

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/documents/adjustment"
	"stockcore/internal/domain/documents/issue"
	"stockcore/internal/domain/documents/receipt"
	"stockcore/internal/domain/documents/transfer"
)

// --- Receipt ---

// CreateReceiptRequest opens a new receipt draft.
type CreateReceiptRequest struct {
	WarehouseID string     `json:"warehouseId" binding:"required,uuid"`
	Reason      string     `json:"reason" binding:"required"`
	ExternalRef *string    `json:"externalRef"`
	Date        *time.Time `json:"date"`
}

// ReceiptLineRequest adds or replaces a receipt line.
type ReceiptLineRequest struct {
	ProductID  string         `json:"productId" binding:"required,uuid"`
	VariantID  *string        `json:"variantId" binding:"omitempty,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	LotNumber  *string        `json:"lotNumber"`
	ExpiryDate *time.Time     `json:"expiryDate"`
	UnitCost   *types.Money   `json:"unitCost"`
}

// ToLine converts the request to a domain line.
func (r ReceiptLineRequest) ToLine() (receipt.Line, error) {
	productID, variantID, err := parseProductVariant(r.ProductID, r.VariantID)
	if err != nil {
		return receipt.Line{}, err
	}
	return receipt.Line{
		ProductID:  productID,
		VariantID:  variantID,
		Quantity:   r.Quantity,
		LotNumber:  r.LotNumber,
		ExpiryDate: r.ExpiryDate,
		UnitCost:   r.UnitCost,
	}, nil
}

// --- Issue ---

// CreateIssueRequest opens a new issue draft.
type CreateIssueRequest struct {
	WarehouseID string     `json:"warehouseId" binding:"required,uuid"`
	ExternalRef *string    `json:"externalRef"`
	Date        *time.Time `json:"date"`
}

// IssueLineRequest adds or replaces an issue line.
type IssueLineRequest struct {
	ProductID string         `json:"productId" binding:"required,uuid"`
	VariantID *string        `json:"variantId" binding:"omitempty,uuid"`
	Requested types.Quantity `json:"requested" binding:"required"`
}

// ToLine converts the request to a domain line.
func (r IssueLineRequest) ToLine() (issue.Line, error) {
	productID, variantID, err := parseProductVariant(r.ProductID, r.VariantID)
	if err != nil {
		return issue.Line{}, err
	}
	return issue.Line{
		ProductID: productID,
		VariantID: variantID,
		Requested: r.Requested,
	}, nil
}

// --- Transfer ---

// CreateTransferRequest opens a new transfer draft.
type CreateTransferRequest struct {
	SourceWarehouseID string     `json:"sourceWarehouseId" binding:"required,uuid"`
	DestWarehouseID   string     `json:"destWarehouseId" binding:"required,uuid"`
	ExternalRef       *string    `json:"externalRef"`
	Date              *time.Time `json:"date"`
}

// TransferLineRequest adds a transfer line.
type TransferLineRequest struct {
	ProductID string         `json:"productId" binding:"required,uuid"`
	VariantID *string        `json:"variantId" binding:"omitempty,uuid"`
	Requested types.Quantity `json:"requested" binding:"required"`
}

// ToLine converts the request to a domain line.
func (r TransferLineRequest) ToLine() (transfer.Line, error) {
	productID, variantID, err := parseProductVariant(r.ProductID, r.VariantID)
	if err != nil {
		return transfer.Line{}, err
	}
	return transfer.Line{
		ProductID: productID,
		VariantID: variantID,
		Requested: r.Requested,
	}, nil
}

// ReceiveSegmentRequest receives a quantity on one transfer segment.
type ReceiveSegmentRequest struct {
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// --- Adjustment ---

// CreateAdjustmentRequest opens a new adjustment draft.
type CreateAdjustmentRequest struct {
	WarehouseID string     `json:"warehouseId" binding:"required,uuid"`
	ReasonCode  string     `json:"reasonCode" binding:"required"`
	Note        string     `json:"note"`
	Date        *time.Time `json:"date"`
}

// AdjustmentLineRequest adds or replaces an adjustment line.
type AdjustmentLineRequest struct {
	ProductID  string         `json:"productId" binding:"required,uuid"`
	VariantID  *string        `json:"variantId" binding:"omitempty,uuid"`
	LotNumber  *string        `json:"lotNumber"`
	ExpiryDate *time.Time     `json:"expiryDate"`
	QtyDelta   types.Quantity `json:"qtyDelta" binding:"required"`
}

// ToLine converts the request to a domain line.
func (r AdjustmentLineRequest) ToLine() (adjustment.Line, error) {
	productID, variantID, err := parseProductVariant(r.ProductID, r.VariantID)
	if err != nil {
		return adjustment.Line{}, err
	}
	return adjustment.Line{
		ProductID:  productID,
		VariantID:  variantID,
		LotNumber:  r.LotNumber,
		ExpiryDate: r.ExpiryDate,
		QtyDelta:   r.QtyDelta,
	}, nil
}

func parseProductVariant(productID string, variantID *string) (id.ID, *id.ID, error) {
	pid, err := id.Parse(productID)
	if err != nil {
		return id.Nil(), nil, err
	}
	var vid *id.ID
	if variantID != nil && *variantID != "" {
		parsed, err := id.Parse(*variantID)
		if err != nil {
			return id.Nil(), nil, err
		}
		vid = &parsed
	}
	return pid, vid, nil
}
