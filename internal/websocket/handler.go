package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"

	"github.com/Nella1414/Back-DOSW-Proyecto1-sub001/internal/auth"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该检查 Origin
		return true
	},
}

// RequestEventsHandler 变更申请事件订阅处理器
// validator 为 nil 时跳过认证 (开发环境)
func RequestEventsHandler(hub *Hub, validator *auth.KeycloakTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := "anonymous"

		if validator != nil {
			// 1. 从 query 参数获取 token
			token := c.Query("token")
			if token == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
				return
			}

			// 2. 验证 token
			claims, err := validator.ValidateToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			userID = claims.Sub
		}

		// 3. 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
			return
		}

		// 4. 创建并注册客户端
		client := NewClient(uuid.New().String(), userID, hub, conn)
		hub.Register <- client

		// 5. 启动 readPump 和 writePump
		go client.ReadPump()
		go client.WritePump()
	}
}
