package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
)

// ReturnSelectionRequest picks a batch to pull
type ReturnSelectionRequest struct {
	BatchID  uint    `json:"batch_id" binding:"required"`
	Quantity *int    `json:"quantity" binding:"omitempty,gt=0"`
	Tier     *string `json:"tier" binding:"omitempty,oneof=partial full"`
}

// CreateReturnRequest represents the request body for POST /returns
type CreateReturnRequest struct {
	Selections []ReturnSelectionRequest `json:"selections" binding:"required,min=1,dive"`
	ReturnDate string                   `json:"return_date"`
	Notes      *string                  `json:"notes"`
}

// CreateReturn handles POST /api/v1/returns (staff only)
func CreateReturn(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	var req CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	selections := make([]services.ReturnSelection, 0, len(req.Selections))
	for _, sel := range req.Selections {
		selection := services.ReturnSelection{BatchID: sel.BatchID, Quantity: sel.Quantity}
		if sel.Tier != nil {
			tier := models.ReturnTier(*sel.Tier)
			selection.Tier = &tier
		}
		selections = append(selections, selection)
	}

	ret, err := services.GetServices().Returns.CreateReturn(c.Request.Context(), services.CreateReturnInput{
		Selections: selections,
		Processor:  middleware.ActorFromUser(user),
		ReturnDate: req.ReturnDate,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(c, err, "create return")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    ret,
	})
}

// GetReturn handles GET /api/v1/returns/:id - accepts the numeric id or the public reference
func GetReturn(c *gin.Context) {
	param := c.Param("id")
	returns := services.GetServices().Returns

	var (
		ret *models.Return
		err error
	)
	if id, convErr := strconv.ParseUint(param, 10, 64); convErr == nil {
		ret, err = returns.GetReturn(c.Request.Context(), uint(id))
	} else {
		ret, err = returns.GetReturnByReference(c.Request.Context(), param)
	}
	if err != nil {
		respondServiceError(c, err, "load return")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    ret,
	})
}
