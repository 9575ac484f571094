package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"biblioteca/internal/documents"
)

func (h *Handler) sendPDF(c *gin.Context, filename string, data []byte, err error) {
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) ownMemberCard(c *gin.Context) {
	caller, _ := identity(c)
	data, err := h.documents.MemberCard(c.Request.Context(), caller.UserID)
	h.sendPDF(c, "carne_"+caller.UserID+".pdf", data, err)
}

func (h *Handler) memberCard(c *gin.Context) {
	id := c.Param("id")
	data, err := h.documents.MemberCard(c.Request.Context(), id)
	h.sendPDF(c, "carne_"+id+".pdf", data, err)
}

func (h *Handler) bookSheet(c *gin.Context) {
	isbn := c.Param("isbn")
	data, err := h.documents.BookSheet(c.Request.Context(), isbn)
	h.sendPDF(c, "ficha_"+isbn+".pdf", data, err)
}

func (h *Handler) loanReport(c *gin.Context) {
	data, err := h.documents.LoanReport(c.Request.Context())
	h.sendPDF(c, "prestamos.pdf", data, err)
}

// citation renders one style with ?estilo= and every style without it
func (h *Handler) citation(c *gin.Context) {
	isbn := c.Param("isbn")

	if name := c.Query("estilo"); name != "" {
		style, err := documents.ParseStyle(name)
		if err != nil {
			h.abort(c, err)
			return
		}
		text, err := h.documents.Citation(c.Request.Context(), isbn, style)
		if err != nil {
			h.abort(c, err)
			return
		}
		respond(c, http.StatusOK, citationView{ISBN: isbn, Style: string(style), Citation: text}, nil)
		return
	}

	all, err := h.documents.Citations(c.Request.Context(), isbn)
	if err != nil {
		h.abort(c, err)
		return
	}
	list := make([]citationView, 0, len(documents.Styles))
	for _, style := range documents.Styles {
		list = append(list, citationView{ISBN: isbn, Style: string(style), Citation: all[style]})
	}
	respond(c, http.StatusOK, list, citationList{Citations: list})
}
