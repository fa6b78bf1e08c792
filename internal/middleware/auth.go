package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/executa/knowledge-engine/internal/service/security"
)

// AccountMiddleware 账户解析中间件
// 所有数据访问都以账户为边界，缺少账户标识直接拒绝
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader("X-Account-ID")
		if accountID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    -1,
				"message": "Missing X-Account-ID header",
			})
			c.Abort()
			return
		}
		c.Set("account_id", accountID)

		plan := c.GetHeader("X-Account-Plan")
		switch plan {
		case security.PlanFree, security.PlanPro, security.PlanEnterprise:
		default:
			plan = security.PlanFree
		}
		c.Set("account_plan", plan)

		c.Next()
	}
}

// GetAccountID 从上下文获取当前账户ID
func GetAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get("account_id")
	if !exists {
		return "", false
	}
	id, ok := accountID.(string)
	return id, ok
}

// GetAccountPlan 从上下文获取当前账户套餐
func GetAccountPlan(c *gin.Context) string {
	if plan, exists := c.Get("account_plan"); exists {
		if p, ok := plan.(string); ok {
			return p
		}
	}
	return security.PlanFree
}
