package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/response"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

// ContextActorKey ключ, под которым в gin.Context лежит entity.Actor.
const ContextActorKey = "actor"

// AuthMiddleware проверяет JWT access токен и кладёт в контекст пользователя,
// выбранную им роль и права.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || actor.UserID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFromContext достаёт пользователя, установленного AuthMiddleware.
func ActorFromContext(c *gin.Context) (entity.Actor, bool) {
	raw, exists := c.Get(ContextActorKey)
	if !exists {
		return entity.Actor{}, false
	}
	actor, ok := raw.(entity.Actor)
	return actor, ok
}
