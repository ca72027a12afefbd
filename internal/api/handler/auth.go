package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"pratojusto/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireUser перевіряє bearer-токен і кладе ідентифікатор користувача у контекст.
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, apperr.Unauthenticated("authorization token missing"))
			return
		}

		userID, err := h.resolveUser(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// resolveUser verifies token and resolves its subject through the user
// directory. A user id claim that disagrees with the subject is refused.
func (h *Handler) resolveUser(ctx context.Context, token string) (uint, error) {
	id, err := h.Verifier.Verify(token)
	if err != nil {
		return 0, err
	}

	user, err := h.Users.FindUserByEmail(ctx, id.Subject)
	if apperr.Is(err, apperr.KindNotFound) {
		return 0, apperr.Unauthenticated("token subject is not a known user")
	}
	if err != nil {
		return 0, err
	}
	if id.UserID != 0 && id.UserID != user.ID {
		h.log.WithField("claimed_user_id", id.UserID).Warn("token user id does not match its subject")
		return 0, apperr.Unauthenticated("invalid token")
	}
	return user.ID, nil
}

// currentUser reads the id set by RequireUser.
func currentUser(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, apperr.InvalidArgument("invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindRecipientNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidTransition, apperr.KindDuplicateRequest:
		return http.StatusConflict
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"code":  apperr.KindOf(err),
		"error": apperr.PublicMessage(err),
	})
}
