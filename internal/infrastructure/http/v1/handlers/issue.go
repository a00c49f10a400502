package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/documents/issue"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// IssueHandler handles HTTP requests for Issue documents.
type IssueHandler struct {
	*BaseHandler
	service *issue.Service
}

// NewIssueHandler creates a new issue handler.
func NewIssueHandler(base *BaseHandler, service *issue.Service) *IssueHandler {
	return &IssueHandler{BaseHandler: base, service: service}
}

// Create opens a new issue draft.
func (h *IssueHandler) Create(c *gin.Context) {
	var req dto.CreateIssueRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), warehouseID, req.ExternalRef, req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc.ID.String())
}

// Get returns an issue with its lines.
func (h *IssueHandler) Get(c *gin.Context) {
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

// List returns issues matching query filters.
func (h *IssueHandler) List(c *gin.Context) {
	var filter issue.ListFilter
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
		status := issue.Status(s)
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
func (h *IssueHandler) AddLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.IssueLineRequest
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

// UpdateLine replaces a draft line by line number. Existing allocations on
// the line are released first.
func (h *IssueHandler) UpdateLine(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	lineNo, ok := h.ParseIntParam(c, "lineNo")
	if !ok {
		return
	}
	var req dto.IssueLineRequest
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
func (h *IssueHandler) RemoveLine(c *gin.Context) {
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

// AllocateLine reserves stock for one line following FEFO order.
func (h *IssueHandler) AllocateLine(c *gin.Context) {
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

// Post consumes the allocations and finalizes the document.
func (h *IssueHandler) Post(c *gin.Context) {
	h.lifecycle(c, h.service.Post)
}

// Cancel cancels the document, releasing any open allocations.
func (h *IssueHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.service.Cancel)
}

// Delete removes a draft issue.
func (h *IssueHandler) Delete(c *gin.Context) {
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

func (h *IssueHandler) lifecycle(c *gin.Context, fn func(ctx context.Context, docID id.ID) (*issue.Issue, error)) {
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
