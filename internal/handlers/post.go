package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/warbler-social/warbler/internal/middleware"
	"github.com/warbler-social/warbler/internal/services"
)

type PostHandler struct {
	postService       *services.PostService
	engagementService *services.EngagementService
	feedService       *services.FeedService
}

func NewPostHandler(postService *services.PostService, engagementService *services.EngagementService, feedService *services.FeedService) *PostHandler {
	return &PostHandler{
		postService:       postService,
		engagementService: engagementService,
		feedService:       feedService,
	}
}

func (h *PostHandler) Create(c *gin.Context) {
	var req services.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.postService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Post created successfully.",
		"post":    post,
	})
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.postService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.postService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully."})
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	result, err := h.engagementService.ToggleLike(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) ToggleBookmark(c *gin.Context) {
	result, err := h.engagementService.ToggleBookmark(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) HomeFeed(c *gin.Context) {
	page, err := h.feedService.HomeFeed(c.Request.Context(), middleware.GetUserID(c), c.Query("cursor"), limitParam(c, 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PostHandler) FollowingFeed(c *gin.Context) {
	page, err := h.feedService.FollowingFeed(c.Request.Context(), middleware.GetUserID(c), c.Query("cursor"), limitParam(c, 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PublicFeed serves unauthenticated discovery; a logged-in caller still gets
// their like projection.
func (h *PostHandler) PublicFeed(c *gin.Context) {
	page, err := h.feedService.PublicFeed(c.Request.Context(), middleware.GetUserID(c), c.Query("cursor"), limitParam(c, 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PostHandler) Bookmarks(c *gin.Context) {
	page, err := h.feedService.BookmarkFeed(c.Request.Context(), middleware.GetUserID(c), limitParam(c, 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ByAuthor serves a user's own timeline, also used by public profile pages.
func (h *PostHandler) ByAuthor(c *gin.Context) {
	posts, err := h.postService.ByAuthor(c.Request.Context(), c.Param("id"), limitParam(c, 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
