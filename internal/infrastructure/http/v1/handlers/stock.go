package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/stock"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for stock items.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Get returns a stock item by ID.
func (h *StockHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// List returns stock items matching query filters.
func (h *StockHandler) List(c *gin.Context) {
	var filter stock.ItemFilter
	filter.OnlyNonZero = c.Query("onlyNonZero") == "true"
	filter.OnlyBlocked = c.Query("onlyBlocked") == "true"
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
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
	if filter.VariantID, err = h.ParseIDQuery(c, "variantId"); err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.service.Items().List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, items)
}

// AssignShelf pins an unshelved stock item to a shelf location.
func (h *StockHandler) AssignShelf(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignShelfRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.service.AssignShelf(c.Request.Context(), itemID, req.Shelf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}
