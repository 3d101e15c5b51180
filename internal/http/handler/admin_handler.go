package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskpilot/identity/internal/domain"
	"github.com/taskpilot/identity/internal/service"
)

// AdminHandler exposes the ADMIN-only user management surface.
type AdminHandler struct {
	Admin *service.AdminService
}

// NewAdminHandler creates the handler set.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{Admin: admin}
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.Admin.ListUsers(c.Request.Context())
	if err != nil {
		serverError(c)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

// GetUser returns a single account by id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return
	}

	user, err := h.Admin.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "User does not exist."})
			return
		}
		serverError(c)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// DeleteUser removes a non-admin account.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return
	}

	if err := h.Admin.DeleteUser(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "User does not exist."})
		case errors.Is(err, domain.ErrAdminDeletion):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Admin accounts cannot be deleted."})
		default:
			serverError(c)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted."})
}
