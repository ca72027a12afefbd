package chathub

import (
	"context"
	"errors"
	"strings"

	"pratojusto/backend/internal/identity"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// TokenAttribute is the handshake attribute holding a credential for
// transports that cannot set headers on the connect frame.
const TokenAttribute = "token"

// Authenticator binds a verified identity to a session.
type Authenticator interface {
	// Authenticate reports whether the session ends up bound. Failures never
	// surface as errors; the session simply stays unauthenticated.
	Authenticate(ctx context.Context, s *Session, headers, attributes map[string]string) bool
}

// SubjectResolver maps a token subject to a user.
type SubjectResolver interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionAuthenticator struct {
	verifier identity.Verifier
	users    SubjectResolver
	log      logrus.FieldLogger
}

func NewSessionAuthenticator(verifier identity.Verifier, users SubjectResolver, log logrus.FieldLogger) *SessionAuthenticator {
	return &SessionAuthenticator{
		verifier: verifier,
		users:    users,
		log:      logger.OrStandard(log).WithField("component", "ws-auth"),
	}
}

func (a *SessionAuthenticator) Authenticate(ctx context.Context, s *Session, headers, attributes map[string]string) bool {
	log := a.log.WithField("conn_id", s.ConnID)

	if p, ok := s.Principal(); ok {
		log.WithField("user_id", p.UserID).Debug("session already bound, ignoring connect")
		return true
	}

	token, source := extractCredential(headers, attributes)
	if token == "" {
		log.Debug("no credential on connect, session stays anonymous")
		return false
	}
	log = log.WithField("source", source)

	id, err := a.verifier.Verify(token)
	if err != nil {
		log.WithError(err).Warn("credential rejected")
		return false
	}

	user, err := a.users.FindUserByEmail(ctx, id.Subject)
	if err != nil {
		log.WithError(err).Warn("token subject does not resolve to a user")
		return false
	}
	if id.UserID != 0 && id.UserID != user.ID {
		log.WithField("claimed_user_id", id.UserID).Warn("token user id does not match its subject")
		return false
	}

	err = s.Bind(Principal{UserID: user.ID, DisplayName: user.DisplayName})
	if errors.Is(err, ErrAlreadyBound) {
		// Lost a race with a concurrent connect on the same session.
		return true
	}

	log.WithField("user_id", user.ID).Info("session bound")
	return true
}

// extractCredential looks at the Authorization header first and the
// handshake attribute second.
func extractCredential(headers, attributes map[string]string) (token, source string) {
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			if t := bearer(v); t != "" {
				return t, "header"
			}
		}
	}
	if t := bearer(attributes[TokenAttribute]); t != "" {
		return t, "attribute"
	}
	return "", ""
}

// bearer strips an optional "Bearer " prefix.
func bearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 6 && strings.EqualFold(v[:6], "Bearer") && (len(v) == 6 || v[6] == ' ') {
		return strings.TrimSpace(v[6:])
	}
	return v
}
