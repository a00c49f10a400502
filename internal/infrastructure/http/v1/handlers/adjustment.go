package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/adjustment"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles HTTP requests for Adjustment documents.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, service: service}
}

// Create opens a new adjustment draft.
func (h *AdjustmentHandler) Create(c *gin.Context) {
	var req dto.CreateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), warehouseID, req.ReasonCode, req.Note, req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Get returns an adjustment with its lines.
func (h *AdjustmentHandler) Get(c *gin.Context) {
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

// List returns adjustments matching query filters.
func (h *AdjustmentHandler) List(c *gin.Context) {
	var filter adjustment.ListFilter
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
		status := adjustment.Status(s)
		filter.Status = &status
	}
	if rc := c.Query("reasonCode"); rc != "" {
		filter.ReasonCode = &rc
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// AddLine appends a line to a draft.
func (h *AdjustmentHandler) AddLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustmentLineRequest
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
func (h *AdjustmentHandler) UpdateLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.ParseIntParam(c, "lineNo")
	if !ok {
		return
	}
	var req dto.AdjustmentLineRequest
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
func (h *AdjustmentHandler) RemoveLine(c *gin.Context) {
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

// Post applies all deltas to stock and finalizes the document.
func (h *AdjustmentHandler) Post(c *gin.Context) {
	h.lifecycle(c, h.service.Post)
}

// Cancel cancels a draft document.
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

// Delete removes a draft adjustment.
func (h *AdjustmentHandler) Delete(c *gin.Context) {
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

func (h *AdjustmentHandler) lifecycle(c *gin.Context, fn func(ctx context.Context, docID id.ID) (*adjustment.Adjustment, error)) {
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
