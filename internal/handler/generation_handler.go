package handler

import (
	"fmt"
	"net/http"
	"time"

	"taxops/internal/middleware"
	"taxops/internal/repository"
	"taxops/internal/rulebook"
	"taxops/internal/service"
	"taxops/pkg/pagination"
	"taxops/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateRequest is the trigger payload. All fields are optional: absent
// tenant means "all active (or configured default) tenants", absent dates
// fall back to the default generation window.
type GenerateRequest struct {
	TenantID                    string   `json:"tenant_id"`
	ClientID                    string   `json:"client_id"`
	FromDate                    string   `json:"from_date"` // YYYY-MM-DD
	ToDate                      string   `json:"to_date"`   // YYYY-MM-DD
	Holidays                    []string `json:"holidays"`  // YYYY-MM-DD list
	DryRun                      bool     `json:"dry_run"`
	ForceRetryWithoutLinkedTask bool     `json:"force_retry_without_linked_task"`
}

type GenerationHandler struct {
	generationService service.GenerationService
}

func NewGenerationHandler(generationService service.GenerationService) *GenerationHandler {
	return &GenerationHandler{generationService: generationService}
}

func (h *GenerationHandler) RegisterRoutes(router *gin.RouterGroup) {
	internal := router.Group("/internal/rulebook")
	internal.Use(middleware.RequireInternalSecret())
	{
		internal.POST("/generate", h.Generate)
	}

	api := router.Group("/api/rulebook/generations")
	api.Use(middleware.RequireRole("admin", "manager"))
	{
		api.GET("", h.ListGenerations)
	}
}

// Generate runs the task generation engine
// @Summary      Run rulebook task generation
// @Description  Evaluates the active rulebook for the target tenants and creates due tasks idempotently. Called by the scheduler or internal tooling.
// @Tags         rulebook
// @Accept       json
// @Produce      json
// @Param        X-Internal-Secret  header    string           true  "Shared internal secret"
// @Param        payload            body      GenerateRequest  true  "Generation options"
// @Success      200      {object}  response.Response{data=[]service.TenantRunSummary}
// @Failure      400      {object}  response.Response
// @Router       /internal/rulebook/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	opts, err := toRunOptions(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	summaries := h.generationService.Run(c.Request.Context(), opts)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summaries))
}

// ListGenerations returns the generation ledger for inspection
// @Summary      List generation records
// @Description  Returns the idempotence ledger rows of the caller's tenant, filterable by client, rule, status and due date.
// @Tags         rulebook
// @Produce      json
// @Security     BearerAuth
// @Param        client_id   query  string  false  "Filter by client"
// @Param        rule_id     query  string  false  "Filter by rule"
// @Param        status      query  string  false  "Filter by status (pending/generated/skipped/error)"
// @Param        due_before  query  string  false  "Only records due before this date (YYYY-MM-DD)"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/rulebook/generations [get]
func (h *GenerationHandler) ListGenerations(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var filter repository.GenerationFilter
	if v := c.Query("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid client_id"))
			return
		}
		filter.ClientID = &id
	}
	if v := c.Query("rule_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid rule_id"))
			return
		}
		filter.RuleID = &id
	}
	filter.Status = c.Query("status")
	if v := c.Query("due_before"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid due_before date (expected YYYY-MM-DD)"))
			return
		}
		filter.DueBefore = &t
	}

	params := pagination.Parse(c)
	records, total, err := h.generationService.ListGenerations(c.Request.Context(), tenantID, filter, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.NewPage(records, total)))
}

func toRunOptions(req GenerateRequest) (service.RunOptions, error) {
	var opts service.RunOptions

	if req.TenantID != "" {
		id, err := uuid.Parse(req.TenantID)
		if err != nil {
			return opts, fmt.Errorf("invalid tenant_id: %w", err)
		}
		opts.TenantID = &id
	}
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return opts, fmt.Errorf("invalid client_id: %w", err)
		}
		opts.ClientID = &id
	}
	if req.FromDate != "" {
		t, err := time.Parse("2006-01-02", req.FromDate)
		if err != nil {
			return opts, fmt.Errorf("invalid from_date (expected YYYY-MM-DD): %w", err)
		}
		opts.FromDate = t
	}
	if req.ToDate != "" {
		t, err := time.Parse("2006-01-02", req.ToDate)
		if err != nil {
			return opts, fmt.Errorf("invalid to_date (expected YYYY-MM-DD): %w", err)
		}
		opts.ToDate = t
	}
	holidays, err := rulebook.ParseHolidays(req.Holidays)
	if err != nil {
		return opts, fmt.Errorf("invalid holidays (expected YYYY-MM-DD): %w", err)
	}
	opts.Holidays = holidays
	opts.DryRun = req.DryRun
	opts.ForceRetryWithoutLinkedTask = req.ForceRetryWithoutLinkedTask
	return opts, nil
}
