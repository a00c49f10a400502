package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain"
	"stockcore/internal/domain/catalogs/warehouse"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles HTTP requests for the Warehouse catalog.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// Create registers a new warehouse.
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	wh := req.ToWarehouse()
	if err := h.service.Create(c.Request.Context(), wh); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, wh.ID.String())
}

// Get returns a warehouse by ID.
func (h *WarehouseHandler) Get(c *gin.Context) {
	whID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	wh, err := h.service.GetByID(c.Request.Context(), whID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, wh)
}

// GetByCode returns a warehouse by its code.
func (h *WarehouseHandler) GetByCode(c *gin.Context) {
	wh, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, wh)
}

// Update replaces mutable warehouse fields.
func (h *WarehouseHandler) Update(c *gin.Context) {
	whID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	wh, err := h.service.GetByID(ctx, whID)
	if err != nil {
		h.Error(c, err)
		return
	}

	wh.Name = req.Name
	wh.Type = warehouse.WarehouseType(req.Type)
	wh.Address = req.Address
	wh.Description = req.Description

	if err := h.service.Update(ctx, wh); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, wh)
}

// Deactivate takes a warehouse out of operation by code.
func (h *WarehouseHandler) Deactivate(c *gin.Context) {
	wh, err := h.service.Deactivate(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, wh)
}

// List returns warehouses matching query filters.
func (h *WarehouseHandler) List(c *gin.Context) {
	filter := domain.ListFilter{
		Search:  c.Query("search"),
		OrderBy: c.Query("orderBy"),
		Limit:   h.ParseIntQuery(c, "limit", 50),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
