package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biblioteca/internal/models"
)

type loanRequest struct {
	ISBN   string `json:"isbn" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) listLoans(c *gin.Context) {
	list, err := h.loans.List(c.Request.Context())
	if err != nil {
		h.abort(c, err)
		return
	}
	if list == nil {
		list = []models.Loan{}
	}
	respond(c, http.StatusOK, list, loanList{Loans: list})
}

func (h *Handler) listOwnLoans(c *gin.Context) {
	caller, _ := identity(c)
	list, err := h.loans.ListForUser(c.Request.Context(), caller.UserID)
	if err != nil {
		h.abort(c, err)
		return
	}
	if list == nil {
		list = []models.Loan{}
	}
	respond(c, http.StatusOK, list, loanList{Loans: list})
}

func (h *Handler) createLoan(c *gin.Context) {
	var req loanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	loan, err := h.loans.CreateLoan(c.Request.Context(), req.ISBN, req.UserID)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusCreated, loan, nil)
}

func (h *Handler) deleteLoan(c *gin.Context) {
	caller, _ := identity(c)
	if err := h.loans.DeleteLoan(c.Request.Context(), caller, c.Param("isbn")); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
