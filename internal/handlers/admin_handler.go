package handlers

import (
	"gmdl/internal/middleware"
	"gmdl/internal/services"
	"gmdl/pkg/pagination"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler 控制面接口（超级管理员 + 管理域名）
type AdminHandler struct {
	plans         *services.PlanService
	tenants       *services.TenantService
	subscriptions *services.SubscriptionService
	runs          *services.OperationRunService
}

func NewAdminHandler(plans *services.PlanService, tenants *services.TenantService, subscriptions *services.SubscriptionService, runs *services.OperationRunService) *AdminHandler {
	return &AdminHandler{plans: plans, tenants: tenants, subscriptions: subscriptions, runs: runs}
}

type AssignSubscriptionRequest struct {
	PlanCode   string `json:"plan_code" binding:"required,max=80"`
	Status     string `json:"status" binding:"omitempty,oneof=trial active past_due canceled suspended expired"`
	PeriodDays *int   `json:"period_days" binding:"omitempty,min=1,max=3650"`
}

// Plans 套餐列表
func (h *AdminHandler) Plans(c *gin.Context) {
	plans, err := h.plans.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"data": plans})
}

// AssignSubscription 为租户分配套餐
func (h *AdminHandler) AssignSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	tenant, err := h.tenants.Find(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var req AssignSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, bindError(err))
		return
	}

	in := services.AssignInput{PlanCode: req.PlanCode, Status: req.Status}
	if req.PeriodDays != nil {
		in.PeriodDays = *req.PeriodDays
	}
	if rc := middleware.RequestContext(c); rc.Authenticated {
		userID := rc.UserID
		in.AssignedBy = &userID
	}

	sub, err := h.subscriptions.Assign(ctx, tenant.ID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"data": sub})
}

// Runs 运维执行记录，支持 tenant / action / status 过滤
func (h *AdminHandler) Runs(c *gin.Context) {
	page := pagination.ParsePageParams(c)
	runs, total, err := h.runs.List(c.Request.Context(), services.RunFilter{
		Tenant: c.Query("tenant"),
		Action: c.Query("action"),
		Status: c.Query("status"),
		Limit:  page.PageSize,
		Offset: page.GetOffset(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]services.RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, services.NewRunView(run))
	}
	response.SuccessWithPage(c, views, pagination.NewPageInfo(page.Page, page.PageSize, total))
}
