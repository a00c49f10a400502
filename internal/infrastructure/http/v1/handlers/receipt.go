package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/receipt"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// ReceiptHandler handles HTTP requests for Receipt documents.
type ReceiptHandler struct {
	*BaseHandler
	service *receipt.Service
}

// NewReceiptHandler creates a new receipt handler.
func NewReceiptHandler(base *BaseHandler, service *receipt.Service) *ReceiptHandler {
	return &ReceiptHandler{BaseHandler: base, service: service}
}

// Create opens a new receipt draft.
func (h *ReceiptHandler) Create(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), warehouseID, req.Reason, req.ExternalRef, req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Get returns a receipt with its lines.
func (h *ReceiptHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// List returns receipts matching query filters.
func (h *ReceiptHandler) List(c *gin.Context) {
	var filter receipt.ListFilter
	filter.Search = c.Query("search")
	filter.OrderBy = c.Query("orderBy")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var err error
	if filter.WarehouseID, err = h.ParseIDQuery(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateFrom, err = h.ParseTimeQuery(c, "dateFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateTo, err = h.ParseTimeQuery(c, "dateTo"); err != nil {
		h.Error(c, err)
		return
	}
	if s := c.Query("status"); s != "" {
		status := receipt.Status(s)
		filter.Status = &status
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// AddLine appends a line to a draft.
func (h *ReceiptHandler) AddLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiptLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := req.ToLine()
	if err != nil {
		h.Error(c, err)
		return
	}
	doc, err := h.service.AddLine(c.Request.Context(), docID, line)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// UpdateLine replaces a draft line by line number.
func (h *ReceiptHandler) UpdateLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.ParseIntParam(c, "lineNo")
	if !ok {
		return
	}
	var req dto.ReceiptLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := req.ToLine()
	if err != nil {
		h.Error(c, err)
		return
	}
	doc, err := h.service.UpdateLine(c.Request.Context(), docID, lineNo, line)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// RemoveLine deletes a draft line by line number.
func (h *ReceiptHandler) RemoveLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.ParseIntParam(c, "lineNo")
	if !ok {
		return
	}
	doc, err := h.service.RemoveLine(c.Request.Context(), docID, lineNo)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Receive applies the draft to stock and moves it to received.
func (h *ReceiptHandler) Receive(c *gin.Context) {
	h.lifecycle(c, h.service.Receive)
}

// Approve finalizes a received document.
func (h *ReceiptHandler) Approve(c *gin.Context) {
	h.lifecycle(c, h.service.Approve)
}

// Cancel cancels a draft document. Received and approved receipts cannot
// be canceled.
func (h *ReceiptHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

// Delete removes a draft receipt.
func (h *ReceiptHandler) Delete(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func (h *ReceiptHandler) lifecycle(c *gin.Context, fn func(ctx context.Context, docID id.ID) (*receipt.Receipt, error)) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}
