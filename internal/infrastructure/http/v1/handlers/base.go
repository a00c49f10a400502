package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses a path parameter as an ID. On failure it registers a
// validation error and returns false.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param).WithDetail(param, c.Param(param)))
		return id.Nil(), false
	}
	return parsed, true
}

// ParseIntParam parses an integer path parameter.
func (h *BaseHandler) ParseIntParam(c *gin.Context, param string) (int, bool) {
	parsed, err := strconv.Atoi(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param).WithDetail(param, c.Param(param)))
		return 0, false
	}
	return parsed, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseIDQuery parses an optional ID query parameter. Empty value yields nil.
func (h *BaseHandler) ParseIDQuery(c *gin.Context, key string) (*id.ID, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := id.Parse(val)
	if err != nil {
		return nil, apperror.NewValidation("invalid " + key).WithDetail(key, val)
	}
	return &parsed, nil
}

// ParseTimeQuery parses an optional RFC3339 query parameter. Empty value
// yields nil.
func (h *BaseHandler) ParseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperror.NewValidation("invalid " + key).WithDetail(key, val)
	}
	return &parsed, nil
}

// Created sends 201 response with ID.
func (h *BaseHandler) Created(c *gin.Context, id string) {
	c.JSON(http.StatusCreated, dto.IDResponse{ID: id})
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
