package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/core/apperror"
	"stockcore/internal/domain/reports"
	"stockcore/internal/domain/stock"
)

// ReportsHandler handles HTTP requests for stock reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// OnHand returns current stock positions with availability totals.
func (h *ReportsHandler) OnHand(c *gin.Context) {
	var filter stock.ItemFilter
	filter.OnlyNonZero = c.Query("onlyNonZero") == "true"
	filter.Limit = h.ParseIntQuery(c, "limit", 200)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var err error
	if filter.WarehouseID, err = h.ParseIDQuery(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductID, err = h.ParseIDQuery(c, "productId"); err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.OnHand(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// History returns ledger entries newest first.
func (h *ReportsHandler) History(c *gin.Context) {
	var filter stock.LedgerFilter
	filter.Limit = h.ParseIntQuery(c, "limit", 100)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	var err error
	if filter.WarehouseID, err = h.ParseIDQuery(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductID, err = h.ParseIDQuery(c, "productId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DocumentID, err = h.ParseIDQuery(c, "documentId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.From, err = h.ParseTimeQuery(c, "from"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.To, err = h.ParseTimeQuery(c, "to"); err != nil {
		h.Error(c, err)
		return
	}
	if m := c.Query("movement"); m != "" {
		movement := stock.MovementType(m)
		filter.Movement = &movement
	}

	entries, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries)
}

// Turnover returns inbound/outbound totals for a period.
func (h *ReportsHandler) Turnover(c *gin.Context) {
	from, err := h.ParseTimeQuery(c, "from")
	if err != nil {
		h.Error(c, err)
		return
	}
	to, err := h.ParseTimeQuery(c, "to")
	if err != nil {
		h.Error(c, err)
		return
	}
	if from == nil || to == nil {
		h.Error(c, apperror.NewValidation("from and to are required"))
		return
	}

	filter := stock.TurnoverFilter{From: *from, To: *to}
	if filter.WarehouseID, err = h.ParseIDQuery(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductID, err = h.ParseIDQuery(c, "productId"); err != nil {
		h.Error(c, err)
		return
	}

	turnover, err := h.service.Turnover(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, turnover)
}
