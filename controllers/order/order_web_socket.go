package orderControllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rami2212/digitex-backend/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// OrderWebSocketHandler registers the connection with the hub; paid orders
// are pushed to it by the reconciliation engine's notifier.
func OrderWebSocketHandler(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		hub.Add(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Remove(conn)
				break
			}
		}
	}
}
