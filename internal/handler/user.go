package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ibeneme/kindred-app-sub000/internal/middleware"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

type UserHandler struct {
	Store store.Store
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	user, ok := h.Store.GetUserByID(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query"})
		return
	}
	c.JSON(http.StatusOK, h.Store.SearchUsers(query))
}

func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.Store.GetUserByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
