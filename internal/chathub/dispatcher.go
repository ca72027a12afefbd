package chathub

import (
	"context"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// Connection is a transport endpoint frames arrive on.
type Connection interface {
	Client
	GetSession() *Session
	Attributes() map[string]string
	// Reply answers this connection only, bypassing the hub.
	Reply(env models.Envelope) bool
}

// FrameHandler processes inbound frames for one connection.
type FrameHandler interface {
	HandleFrame(ctx context.Context, conn Connection, frame models.InboundFrame)
}

// MessageSender is the part of the router the dispatcher needs.
type MessageSender interface {
	Send(ctx context.Context, senderID, recipientID uint, body string) (*models.Message, error)
}

// Dispatcher authenticates CONNECT frames and routes chat.send frames. A
// chat.send on an unbound session is answered with an UNAUTHENTICATED error
// and goes nowhere.
type Dispatcher struct {
	auth   Authenticator
	hub    *ManagerService
	router MessageSender
	log    logrus.FieldLogger
}

func NewDispatcher(auth Authenticator, hub *ManagerService, router MessageSender, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		auth:   auth,
		hub:    hub,
		router: router,
		log:    logger.OrStandard(log).WithField("component", "dispatcher"),
	}
}

func (d *Dispatcher) HandleFrame(ctx context.Context, conn Connection, frame models.InboundFrame) {
	switch frame.Type {
	case models.FrameConnect:
		d.handleConnect(ctx, conn, frame)
	case models.FrameChatSend:
		d.handleChatSend(ctx, conn, frame)
	default:
		conn.Reply(errorEnvelope(apperr.InvalidArgument("unknown frame type " + frame.Type)))
	}
}

func (d *Dispatcher) handleConnect(ctx context.Context, conn Connection, frame models.InboundFrame) {
	session := conn.GetSession()
	wasBound := session.Authenticated()

	if !wasBound && d.auth.Authenticate(ctx, session, frame.Headers, conn.Attributes()) {
		d.hub.RegisterCh <- conn
	}

	p, ok := session.Principal()
	env, err := models.NewEnvelope(models.EnvelopeConnected, models.ConnectedPayload{
		Authenticated: ok,
		UserID:        p.UserID,
		DisplayName:   p.DisplayName,
	})
	if err != nil {
		d.log.WithError(err).Error("encode CONNECTED")
		return
	}
	conn.Reply(env)
}

func (d *Dispatcher) handleChatSend(ctx context.Context, conn Connection, frame models.InboundFrame) {
	p, ok := conn.GetSession().Principal()
	if !ok {
		d.log.WithField("conn_id", conn.GetConnID()).Debug("chat.send on unauthenticated session rejected")
		conn.Reply(errorEnvelope(apperr.Unauthenticated("connect with a valid token before sending messages")))
		return
	}

	if _, err := d.router.Send(ctx, p.UserID, frame.RecipientID, frame.Content); err != nil {
		conn.Reply(errorEnvelope(err))
	}
}

// errorEnvelope renders err as an ERROR envelope without leaking internals.
func errorEnvelope(err error) models.Envelope {
	env, encErr := models.NewEnvelope(models.EnvelopeError, models.ErrorPayload{
		Code:    string(apperr.KindOf(err)),
		Message: apperr.PublicMessage(err),
	})
	if encErr != nil {
		return models.Envelope{Type: models.EnvelopeError}
	}
	return env
}
