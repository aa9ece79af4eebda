package handler

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Ibeneme/kindred-app-sub000/internal/middleware"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

type FamilyHandler struct {
	Store store.Store
}

type createFamilyBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *FamilyHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body createFamilyBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	now := time.Now().UnixMilli()
	family := model.Family{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: body.Description,
		CreatorID:   userID,
		JoinCode:    generateJoinCode(),
		CreatedAt:   now,
	}
	if err := h.Store.CreateFamily(family); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if err := h.Store.AddFamilyMember(family.ID, userID, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, family)
}

type joinFamilyBody struct {
	JoinCode string `json:"joinCode"`
}

func (h *FamilyHandler) Join(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body joinFamilyBody
	if err := c.ShouldBindJSON(&body); err != nil || body.JoinCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Join code is required"})
		return
	}

	family, ok := h.Store.GetFamilyByJoinCode(body.JoinCode)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown join code"})
		return
	}
	if err := h.Store.AddFamilyMember(family.ID, userID, time.Now().UnixMilli()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, family)
}

func (h *FamilyHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, h.Store.ListFamilies(userID))
}

func (h *FamilyHandler) Members(c *gin.Context) {
	familyID := c.Param("id")
	if _, ok := h.Store.GetFamily(familyID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Family not found"})
		return
	}
	c.JSON(http.StatusOK, h.Store.ListFamilyMembers(familyID))
}

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateJoinCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()[:6]
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf)
}
