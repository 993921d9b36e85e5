package handlers

import (
	"time"

	"gmdl/internal/middleware"
	"gmdl/internal/services"
	"gmdl/pkg/response"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	subscriptions *services.SubscriptionService
}

func NewBillingHandler(subscriptions *services.SubscriptionService) *BillingHandler {
	return &BillingHandler{subscriptions: subscriptions}
}

// Status 计费状态；只需登录，订阅过期时前端也要能看到
func (h *BillingHandler) Status(c *gin.Context) {
	status, err := h.subscriptions.Status(c.Request.Context(), middleware.RequestContext(c), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Ping 租户域名 + 订阅闸门的示例接口
func Ping(c *gin.Context) {
	response.Success(c, gin.H{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339Nano)})
}
