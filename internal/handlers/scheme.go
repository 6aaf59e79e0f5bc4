package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/schemeworks/sow-backend/internal/services"
  "github.com/schemeworks/sow-backend/internal/types"
)

type SchemeHandler struct {
  genService    services.SchemeGenerationService
  schemeService services.SchemeService
  statusService services.SchemeStatusService
}

func NewSchemeHandler(
  genService services.SchemeGenerationService,
  schemeService services.SchemeService,
  statusService services.SchemeStatusService,
) *SchemeHandler {
  return &SchemeHandler{
    genService:    genService,
    schemeService: schemeService,
    statusService: statusService,
  }
}

type generateSchemeBody struct {
  UserID  uuid.UUID               `json:"user_id" binding:"required"`
  Request types.GenerationRequest `json:"request" binding:"required"`
}

func (h *SchemeHandler) Generate(c *gin.Context) {
  var body generateSchemeBody
  if err := c.ShouldBindJSON(&body); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }

  run, err := h.genService.EnqueueGeneration(c.Request.Context(), body.UserID, body.Request)
  if err != nil {
    c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (h *SchemeHandler) GetScheme(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheme id"})
    return
  }

  scheme, row, err := h.schemeService.GetScheme(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"scheme": scheme, "document": row})
}

func (h *SchemeHandler) ListSchemes(c *gin.Context) {
  userID, err := uuid.Parse(c.Query("user_id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
    return
  }

  rows, err := h.schemeService.ListSchemes(c.Request.Context(), nil, userID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"schemes": rows})
}

func (h *SchemeHandler) GetLatestRun(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheme id"})
    return
  }

  run, err := h.statusService.GetLatestRunForScheme(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *SchemeHandler) GetRun(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
    return
  }

  run, err := h.statusService.GetRunByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"run": run})
}
