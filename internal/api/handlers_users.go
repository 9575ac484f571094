package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"biblioteca/internal/models"
	"biblioteca/internal/users"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// badRequest wraps a binding failure as invalid input
func badRequest(err error) error {
	return fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	h.issueToken(c, req.Identifier, req.Password)
}

// loginQuery accepts the credentials as query parameters
func (h *Handler) loginQuery(c *gin.Context) {
	identifier, password := c.Query("identificador"), c.Query("password")
	if identifier == "" || password == "" {
		h.abort(c, badRequest(errors.New("identificador and password are required")))
		return
	}
	h.issueToken(c, identifier, password)
}

func (h *Handler) issueToken(c *gin.Context, identifier, password string) {
	token, err := h.auth.Login(c.Request.Context(), identifier, password, c.ClientIP())
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, token, nil)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changePassword(c *gin.Context) {
	caller, _ := identity(c)
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	err := h.auth.ChangePassword(c.Request.Context(), caller.UserID, req.OldPassword, req.NewPassword)
	if errors.Is(err, models.ErrInvalidCredentials) {
		// A wrong current password is a bad request, the session stays valid
		h.abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSelf(c *gin.Context) {
	caller, _ := identity(c)
	h.writeUser(c, caller, caller.UserID)
}

func (h *Handler) getUser(c *gin.Context) {
	caller, _ := identity(c)
	h.writeUser(c, caller, c.Param("id"))
}

func (h *Handler) writeUser(c *gin.Context, caller models.Identity, id string) {
	user, err := h.users.Get(c.Request.Context(), caller, id)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, user, nil)
}

func (h *Handler) listUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.abort(c, err)
		return
	}
	if list == nil {
		list = []models.User{}
	}
	respond(c, http.StatusOK, list, userList{Users: list})
}

func (h *Handler) createUser(c *gin.Context) {
	caller, _ := identity(c)
	var req users.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	user, err := h.users.Create(c.Request.Context(), caller, req)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusCreated, user, nil)
}

func (h *Handler) updateSelf(c *gin.Context) {
	caller, _ := identity(c)
	var req users.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abort(c, badRequest(err))
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), caller.UserID, req)
	if err != nil {
		h.abort(c, err)
		return
	}
	respond(c, http.StatusOK, user, nil)
}

func (h *Handler) deleteUser(c *gin.Context) {
	caller, _ := identity(c)
	if err := h.users.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listLogins(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.abort(c, badRequest(fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}
	records, err := h.logins.ListLogins(c.Request.Context(), limit)
	if err != nil {
		h.abort(c, err)
		return
	}
	if records == nil {
		records = []models.LoginRecord{}
	}
	respond(c, http.StatusOK, records, loginList{Logins: records})
}
