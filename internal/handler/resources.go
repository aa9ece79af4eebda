package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Ibeneme/kindred-app-sub000/internal/middleware"
	"github.com/Ibeneme/kindred-app-sub000/internal/model"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

// ResourceHandler serves one family-scoped collection. News, tasks,
// polls and the rest are the same CRUD over free-form JSON bodies, so
// one handler per collection name covers them all.
type ResourceHandler struct {
	Store      store.Store
	Collection string
}

func (h *ResourceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.ListDocuments(h.Collection, c.Query("familyId")))
}

type createDocumentBody struct {
	FamilyID string          `json:"familyId"`
	Body     json.RawMessage `json:"body"`
}

func (h *ResourceHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body createDocumentBody
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing body"})
		return
	}

	now := time.Now().UnixMilli()
	doc := model.Document{
		ID:         uuid.NewString(),
		Collection: h.Collection,
		FamilyID:   body.FamilyID,
		OwnerID:    userID,
		Body:       body.Body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.CreateDocument(doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *ResourceHandler) Get(c *gin.Context) {
	doc, ok := h.Store.GetDocument(h.Collection, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

type updateDocumentBody struct {
	Body json.RawMessage `json:"body"`
}

func (h *ResourceHandler) Update(c *gin.Context) {
	var body updateDocumentBody
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing body"})
		return
	}

	id := c.Param("id")
	if !h.Store.UpdateDocument(h.Collection, id, body.Body, time.Now().UnixMilli()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	doc, _ := h.Store.GetDocument(h.Collection, id)
	c.JSON(http.StatusOK, doc)
}

func (h *ResourceHandler) Delete(c *gin.Context) {
	if !h.Store.DeleteDocument(h.Collection, c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
