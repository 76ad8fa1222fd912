package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/warbler-social/warbler/internal/middleware"
	"github.com/warbler-social/warbler/internal/services"
)

type UserHandler struct {
	userService     *services.UserService
	activityService *services.ActivityService
	jwtConfig       *middleware.JWTConfig
}

func NewUserHandler(userService *services.UserService, activityService *services.ActivityService, jwtConfig *middleware.JWTConfig) *UserHandler {
	return &UserHandler{
		userService:     userService,
		activityService: activityService,
		jwtConfig:       jwtConfig,
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID.String(), user.Username, h.jwtConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully.",
		"token":   token,
		"user":    user,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID.String(), user.Username, h.jwtConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome back " + user.Name,
		"token":   token,
		"user":    user,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully."})
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully.",
		"user":    user,
	})
}

func (h *UserHandler) Follow(c *gin.Context) {
	err := h.userService.Follow(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if errors.Is(err, services.ErrAlreadyFollowing) {
		// Informational, not a failure: the edge already exists and is
		// untouched.
		c.JSON(http.StatusOK, gin.H{"message": "Already following.", "already_following": true})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Followed successfully."})
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	if err := h.userService.Unfollow(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed successfully."})
}

func (h *UserHandler) GetFollowers(c *gin.Context) {
	users, err := h.userService.GetFollowers(c.Request.Context(), c.Param("id"), limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) GetFollowing(c *gin.Context) {
	users, err := h.userService.GetFollowing(c.Request.Context(), c.Param("id"), limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) OtherUsers(c *gin.Context) {
	users, err := h.userService.OtherUsers(c.Request.Context(), middleware.GetUserID(c), limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Activity(c *gin.Context) {
	events, err := h.activityService.RecentForUser(c.Request.Context(), middleware.GetUserID(c), limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": events})
}

func (h *UserHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie("token", token, int(h.jwtConfig.ExpireTime.Seconds()), "/", "", false, true)
}

func limitParam(c *gin.Context, def int) int {
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
