package dto

// AssignShelfRequest pins a stock item to a shelf location.
type AssignShelfRequest struct {
	Shelf string `json:"shelf" binding:"required"`
}
