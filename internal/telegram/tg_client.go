package telegram

import (
	"strconv"
	"sync"
	"sync/atomic"

	"pratojusto/backend/internal/localization"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the slice of the Bot API the transport writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client реалізує інтерфейс chathub.Client для прив'язаного Telegram-чату.
type Client struct {
	UserID   uint
	ChatID   int64
	Language string
	Send     chan models.Envelope

	sender    Sender
	localizer *localization.Localizer
	log       logrus.FieldLogger

	closeOnce sync.Once
	closed    atomic.Bool
}

func newClient(user models.User, chatID int64, sender Sender, localizer *localization.Localizer, log logrus.FieldLogger) *Client {
	return &Client{
		UserID:    user.ID,
		ChatID:    chatID,
		Language:  user.Language,
		Send:      make(chan models.Envelope, 32),
		sender:    sender,
		localizer: localizer,
		log:       logger.OrStandard(log).WithFields(logrus.Fields{"user_id": user.ID, "chat_id": chatID}),
	}
}

func (c *Client) GetUserID() uint                         { return c.UserID }
func (c *Client) GetConnID() string                       { return connID(c.ChatID) }
func (c *Client) GetSendChannel() chan<- models.Envelope { return c.Send }

// Run starts the write pump. Updates are read centrally by BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.Send)
	})
}

// Closed reports whether the hub (or the bot) has shut this client down.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

func connID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// writePump renders envelopes into chat messages until Send is closed.
func (c *Client) writePump() {
	defer c.log.Debug("telegram write pump stopped")

	for env := range c.Send {
		text, ok := renderEnvelope(c.localizer, c.Language, c.UserID, env)
		if !ok {
			continue
		}
		if _, err := c.sender.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
			c.log.WithError(err).Warn("failed to send telegram message")
		}
	}
}

// renderEnvelope turns an envelope into text for user self. It reports false
// for envelopes that have no chat rendering, including self's own echoes.
func renderEnvelope(l *localization.Localizer, lang string, self uint, env models.Envelope) (string, bool) {
	switch env.Type {
	case models.EnvelopeChat:
		var p models.ChatPayload
		if err := env.Decode(&p); err != nil {
			return "", false
		}
		if p.SenderID == self {
			return "", false
		}
		return l.Format(lang, "chat_incoming", p.SenderName, p.SenderID, p.Content), true

	case models.EnvelopeRequestUpdate:
		var e models.RequestEvent
		if err := env.Decode(&e); err != nil {
			return "", false
		}
		title := e.DonationTitle
		if title == "" {
			title = "#" + strconv.FormatUint(uint64(e.DonationID), 10)
		}
		return l.Format(lang, "request_update", e.RequestID, title, l.GetString(lang, "action_"+e.Action)), true

	case models.EnvelopeError:
		var p models.ErrorPayload
		if err := env.Decode(&p); err != nil {
			return "", false
		}
		return l.Format(lang, "error", p.Message), true
	}
	return "", false
}
