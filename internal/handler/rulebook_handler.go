package handler

import (
	"net/http"

	"taxops/internal/middleware"
	"taxops/internal/service"
	"taxops/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RulebookHandler struct {
	rulebookService service.RulebookService
}

func NewRulebookHandler(rulebookService service.RulebookService) *RulebookHandler {
	return &RulebookHandler{rulebookService: rulebookService}
}

func (h *RulebookHandler) RegisterRoutes(router *gin.RouterGroup) {
	rb := router.Group("/api/rulebook")
	rb.Use(middleware.RequireRole("admin", "manager"))
	{
		rb.GET("/versions", h.ListVersions)
		rb.POST("/versions", h.CreateVersion)
		rb.POST("/versions/:id/activate", h.ActivateVersion)
		rb.POST("/init", h.Init)

		rb.GET("/rules", h.ListRules)
		rb.POST("/rules", h.CreateRule)
		rb.PUT("/rules/:id", h.UpdateRule)
		rb.DELETE("/rules/:id", h.DeleteRule)
	}
}

// ListVersions returns the tenant's rulebook versions
// @Summary      List rulebook versions
// @Tags         rulebook
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.VersionResponse}
// @Router       /api/rulebook/versions [get]
func (h *RulebookHandler) ListVersions(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	versions, err := h.rulebookService.ListVersions(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, versions))
}

// CreateVersion creates a new rulebook version
// @Summary      Create rulebook version
// @Tags         rulebook
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateVersionRequest  true  "Version payload"
// @Success      201      {object}  response.Response{data=service.VersionResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulebook/versions [post]
func (h *RulebookHandler) CreateVersion(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req service.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	version, err := h.rulebookService.CreateVersion(c.Request.Context(), tenantID, req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, version))
}

// ActivateVersion makes one version the tenant's active version
// @Summary      Activate rulebook version
// @Description  Atomically deactivates any other active version of the tenant and activates this one.
// @Tags         rulebook
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Version ID"
// @Success      200  {object}  response.Response{data=service.VersionResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/rulebook/versions/{id}/activate [post]
func (h *RulebookHandler) ActivateVersion(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	version, err := h.rulebookService.ActivateVersion(c.Request.Context(), tenantID, c.Param("id"), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, version))
}

// Init seeds the baseline rulebook for the tenant
// @Summary      Initialize rulebook
// @Description  Finds-or-creates a version and upserts the baseline rule set; idempotent per rule code.
// @Tags         rulebook
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.InitRequest  true  "Init options"
// @Success      200      {object}  response.Response{data=service.InitSummary}
// @Failure      400      {object}  response.Response
// @Router       /api/rulebook/init [post]
func (h *RulebookHandler) Init(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req service.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	summary, err := h.rulebookService.Init(c.Request.Context(), tenantID, req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// ListRules returns the rules of one version
// @Summary      List rulebook rules
// @Tags         rulebook
// @Produce      json
// @Security     BearerAuth
// @Param        version_id  query  string  true  "Version ID"
// @Success      200  {object}  response.Response{data=[]service.RuleResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/rulebook/rules [get]
func (h *RulebookHandler) ListRules(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	versionID := c.Query("version_id")
	if versionID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "version_id query parameter is required"))
		return
	}

	rules, err := h.rulebookService.ListRules(c.Request.Context(), tenantID, versionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// CreateRule adds a rule to a version
// @Summary      Create rulebook rule
// @Tags         rulebook
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RuleRequest  true  "Rule payload"
// @Success      201      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulebook/rules [post]
func (h *RulebookHandler) CreateRule(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.rulebookService.CreateRule(c.Request.Context(), tenantID, req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateRule replaces a rule's definition
// @Summary      Update rulebook rule
// @Tags         rulebook
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Rule ID"
// @Param        payload  body      service.RuleRequest  true  "Rule payload"
// @Success      200      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulebook/rules/{id} [put]
func (h *RulebookHandler) UpdateRule(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.rulebookService.UpdateRule(c.Request.Context(), tenantID, c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// DeleteRule deactivates (or hard-deletes) a rule
// @Summary      Delete rulebook rule
// @Description  Soft-deletes by default (is_active=false); pass hard=true to remove the row.
// @Tags         rulebook
// @Produce      json
// @Security     BearerAuth
// @Param        id    path   string  true   "Rule ID"
// @Param        hard  query  bool    false  "Hard delete"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/rulebook/rules/{id} [delete]
func (h *RulebookHandler) DeleteRule(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	hard := c.Query("hard") == "true"
	if err := h.rulebookService.DeleteRule(c.Request.Context(), tenantID, c.Param("id"), hard, middleware.UserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true, "hard": hard}))
}

// tenantFromContext parses the tenant scoping installed by RequireRole,
// aborting the request when it is unusable.
func tenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(middleware.TenantID(c))
	if err != nil {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Invalid tenant in token"))
		return uuid.Nil, false
	}
	return tenantID, true
}
