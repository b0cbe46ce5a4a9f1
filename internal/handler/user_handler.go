package handler

import (
	"errors"
	"net/http"

	"notify24/internal/domain"
	"notify24/internal/middleware"
	"notify24/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userSvc *service.UserService
}

func NewUserHandler(userSvc *service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// List returns the caller's eligible target set: every other user for
// admins, only own created accounts for everyone else.
func (h *UserHandler) List(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	users, err := h.userSvc.ListEligible(callerID, isAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *UserHandler) Create(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.userSvc.Create(callerID, isAdmin, req.Username, req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

type updateUserRequest struct {
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

func (h *UserHandler) Update(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.userSvc.Update(callerID, isAdmin, id, req.FullName, req.Password)
	if err != nil {
		writeUserErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *UserHandler) Delete(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.userSvc.Delete(callerID, isAdmin, id); err != nil {
		writeUserErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeUserErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
