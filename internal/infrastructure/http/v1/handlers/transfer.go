package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/transfer"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for Transfer documents.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// Create opens a new transfer draft.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sourceID, err := id.Parse(req.SourceWarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	destID, err := id.Parse(req.DestWarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), sourceID, destID, req.ExternalRef, req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Get returns a transfer with its lines.
func (h *TransferHandler) Get(c *gin.Context) {
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

// List returns transfers matching query filters.
func (h *TransferHandler) List(c *gin.Context) {
	var filter transfer.ListFilter
	filter.Search = c.Query("search")
	filter.OrderBy = c.Query("orderBy")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var err error
	if filter.SourceWarehouseID, err = h.ParseIDQuery(c, "sourceWarehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DestWarehouseID, err = h.ParseIDQuery(c, "destWarehouseId"); err != nil {
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
		status := transfer.Status(s)
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
func (h *TransferHandler) AddLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.TransferLineRequest
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

// RemoveLine deletes a draft line by line number.
func (h *TransferHandler) RemoveLine(c *gin.Context) {
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

// AllocateLine reserves source stock for one line following FEFO order.
func (h *TransferHandler) AllocateLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.ParseIntParam(c, "lineNo")
	if !ok {
		return
	}
	doc, err := h.service.AllocateLineFefo(c.Request.Context(), docID, lineNo)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Ship consumes allocations at the source and moves the document to in
// transit.
func (h *TransferHandler) Ship(c *gin.Context) {
	h.lifecycle(c, h.service.Ship)
}

// ReceiveSegment receives a quantity at the destination against one shipped
// segment. When all segments are fully received the document completes.
func (h *TransferHandler) ReceiveSegment(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	segmentID, ok := h.ParseID(c, "segmentId")
	if !ok {
		return
	}
	var req dto.ReceiveSegmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.ReceiveOnSegment(c.Request.Context(), docID, segmentID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Cancel cancels the document, releasing open reservations.
func (h *TransferHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

// Delete removes a draft transfer.
func (h *TransferHandler) Delete(c *gin.Context) {
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

func (h *TransferHandler) lifecycle(c *gin.Context, fn func(ctx context.Context, docID id.ID) (*transfer.Transfer, error)) {
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
