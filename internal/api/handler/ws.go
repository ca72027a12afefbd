package handler

import (
	"net/http"

	"pratojusto/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket.
//
// Відсутність токена не блокує оновлення: знайдений токен зберігається як
// атрибут рукостискання і перевіряється, коли клієнт надсилає CONNECT.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	attrs := handshakeAttributes(c.Request)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, h.Dispatcher, h.realtime, attrs)
	client.Run()
}

func handshakeAttributes(r *http.Request) map[string]string {
	attrs := make(map[string]string)
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		attrs[chathub.TokenAttribute] = token
	} else if token := r.URL.Query().Get("access_token"); token != "" {
		attrs[chathub.TokenAttribute] = token
	}
	return attrs
}
