// Package telegram handles the integration with the Telegram Bot API.
// A linked chat is one more connection of its user: it is authenticated
// through the same session authenticator as WebSocket connections and
// receives the user's private deliveries through the hub.
package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/chathub"
	"pratojusto/backend/internal/localization"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Users is the user-directory slice the bot needs.
type Users interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID uint, chatID int64) error
	UnlinkTelegramChat(ctx context.Context, chatID int64) error
	ListTelegramLinkedUsers(ctx context.Context) ([]models.User, error)
}

// Chat is the router slice the bot needs.
type Chat interface {
	Send(ctx context.Context, senderID, recipientID uint, body string) (*models.Message, error)
	Threads(ctx context.Context, userID uint) ([]chathub.ThreadSummary, error)
}

// BotService is responsible for receiving Telegram updates and routing them to the hub.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Hub       *chathub.ManagerService
	Auth      chathub.Authenticator
	Chat      Chat
	Users     Users
	Localizer *localization.Localizer

	sender Sender
	log    logrus.FieldLogger

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, hub *chathub.ManagerService, auth chathub.Authenticator, chat Chat, users Users, localizer *localization.Localizer, log logrus.FieldLogger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	s := newBotService(bot, hub, auth, chat, users, localizer, log)
	s.BotAPI = bot
	s.log.WithField("bot", bot.Self.UserName).Info("authorized on telegram")
	return s, nil
}

func newBotService(sender Sender, hub *chathub.ManagerService, auth chathub.Authenticator, chat Chat, users Users, localizer *localization.Localizer, log logrus.FieldLogger) *BotService {
	s := &BotService{
		Hub:       hub,
		Auth:      auth,
		Chat:      chat,
		Users:     users,
		Localizer: localizer,
		sender:    sender,
		log:       logger.OrStandard(log).WithField("component", "telegram"),
		clients:   make(map[int64]*Client),
	}
	hub.SetClientRestorer(s.restoreClient)
	return s
}

// restoreClient is the hub's ClientRestorer for linked chats.
func (s *BotService) restoreClient(user models.User) (chathub.Client, error) {
	if user.TelegramChatID == nil {
		return nil, apperr.InvalidArgument("user has no linked telegram chat")
	}
	client := newClient(user, *user.TelegramChatID, s.sender, s.Localizer, s.log)
	s.mu.Lock()
	s.clients[client.ChatID] = client
	s.mu.Unlock()
	return client, nil
}

// RestoreSessions re-registers every linked chat after a restart.
func (s *BotService) RestoreSessions(ctx context.Context) {
	users, err := s.Users.ListTelegramLinkedUsers(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to list linked telegram users")
		return
	}
	for _, user := range users {
		if err := s.Hub.RestoreClientSession(user); err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Warn("could not restore telegram session")
		}
	}
	s.log.WithField("sessions", len(users)).Info("telegram sessions restored")
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context) {
	s.RestoreSessions(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				s.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		s.reply(msg.Chat.ID, s.languageFor(msg), "send_usage")
		return
	}

	switch msg.Command() {
	case "start":
		s.handleStart(ctx, msg)
	case "send":
		s.handleSend(ctx, msg)
	case "chats":
		s.handleChats(ctx, msg)
	case "stop":
		s.handleStop(ctx, msg)
	default:
		s.reply(msg.Chat.ID, s.languageFor(msg), "unknown_command")
	}
}

// handleStart links the chat to the account behind the token. The token is
// passed in the handshake attribute slot since Telegram carries no headers.
func (s *BotService) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	lang := s.languageFor(msg)

	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		s.reply(chatID, lang, "start_usage")
		return
	}

	session := chathub.NewSession(connID(chatID))
	if !s.Auth.Authenticate(ctx, session, nil, map[string]string{chathub.TokenAttribute: token}) {
		s.reply(chatID, lang, "link_failed")
		return
	}
	principal, _ := session.Principal()

	if err := s.Users.LinkTelegramChat(ctx, principal.UserID, chatID); err != nil {
		s.log.WithError(err).Error("failed to link telegram chat")
		s.replyText(chatID, s.Localizer.Format(lang, "error", apperr.PublicMessage(err)))
		return
	}
	user, err := s.Users.FindUserByID(ctx, principal.UserID)
	if err != nil {
		s.log.WithError(err).Error("linked user vanished")
		return
	}

	s.dropClient(chatID)
	client := newClient(*user, chatID, s.sender, s.Localizer, s.log)
	s.mu.Lock()
	s.clients[chatID] = client
	s.mu.Unlock()
	s.Hub.RegisterCh <- client
	client.Run()

	s.replyText(chatID, s.Localizer.Format(user.Language, "linked", user.DisplayName))
}

func (s *BotService) handleSend(ctx context.Context, msg *tgbotapi.Message) {
	client, ok := s.linkedClient(msg)
	if !ok {
		return
	}

	recipientID, body, ok := parseSendArgs(msg.CommandArguments())
	if !ok {
		s.reply(client.ChatID, client.Language, "send_usage")
		return
	}

	if _, err := s.Chat.Send(ctx, client.UserID, recipientID, body); err != nil {
		s.replyText(client.ChatID, s.Localizer.Format(client.Language, "error", apperr.PublicMessage(err)))
		return
	}
	s.reply(client.ChatID, client.Language, "sent")
}

func (s *BotService) handleChats(ctx context.Context, msg *tgbotapi.Message) {
	client, ok := s.linkedClient(msg)
	if !ok {
		return
	}

	threads, err := s.Chat.Threads(ctx, client.UserID)
	if err != nil {
		s.replyText(client.ChatID, s.Localizer.Format(client.Language, "error", apperr.PublicMessage(err)))
		return
	}
	s.replyText(client.ChatID, renderThreads(s.Localizer, client.Language, threads))
}

func (s *BotService) handleStop(ctx context.Context, msg *tgbotapi.Message) {
	client, ok := s.linkedClient(msg)
	if !ok {
		return
	}
	if err := s.Users.UnlinkTelegramChat(ctx, client.ChatID); err != nil {
		s.log.WithError(err).Error("failed to unlink telegram chat")
	}
	s.dropClient(client.ChatID)
	s.reply(client.ChatID, client.Language, "unlinked")
}

// linkedClient returns the chat's client, answering not_linked when absent.
// A client the hub dropped (slow consumer) is replaced and registered again.
func (s *BotService) linkedClient(msg *tgbotapi.Message) (*Client, bool) {
	s.mu.Lock()
	client, ok := s.clients[msg.Chat.ID]
	revived := false
	if ok && client.Closed() {
		client = newClient(models.User{ID: client.UserID, Language: client.Language}, client.ChatID, s.sender, s.Localizer, s.log)
		s.clients[client.ChatID] = client
		revived = true
	}
	s.mu.Unlock()

	if !ok {
		s.reply(msg.Chat.ID, s.languageFor(msg), "not_linked")
		return nil, false
	}
	if revived {
		s.Hub.RegisterCh <- client
		client.Run()
		s.log.WithField("user_id", client.UserID).Info("re-registered dropped telegram client")
	}
	return client, true
}

// dropClient unregisters the chat's current client, if any.
func (s *BotService) dropClient(chatID int64) {
	s.mu.Lock()
	client, ok := s.clients[chatID]
	delete(s.clients, chatID)
	s.mu.Unlock()
	if ok {
		s.Hub.Unregister(client)
	}
}

func (s *BotService) reply(chatID int64, lang, key string) {
	s.replyText(chatID, s.Localizer.GetString(lang, key))
}

func (s *BotService) replyText(chatID int64, text string) {
	if _, err := s.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("failed to send telegram reply")
	}
}

// languageFor picks the reply language for a chat: the linked user's choice,
// else the Telegram client's language.
func (s *BotService) languageFor(msg *tgbotapi.Message) string {
	s.mu.Lock()
	client, ok := s.clients[msg.Chat.ID]
	s.mu.Unlock()
	if ok && client.Language != "" {
		return client.Language
	}
	if msg.From != nil && strings.HasPrefix(strings.ToLower(msg.From.LanguageCode), "pt") {
		return "pt"
	}
	return localization.DefaultLanguage
}

// parseSendArgs splits "<user id> <message>".
func parseSendArgs(args string) (uint, string, bool) {
	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(fields) != 2 {
		return 0, "", false
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	body := strings.TrimSpace(fields[1])
	if body == "" {
		return 0, "", false
	}
	return uint(id), body, true
}

func renderThreads(l *localization.Localizer, lang string, threads []chathub.ThreadSummary) string {
	if len(threads) == 0 {
		return l.GetString(lang, "chats_empty")
	}

	var b strings.Builder
	b.WriteString(l.GetString(lang, "chats_header"))
	for _, th := range threads {
		last := l.GetString(lang, "chat_line_empty")
		if th.LatestMessage != nil {
			last = th.LatestMessage.Body
		}
		status := l.GetString(lang, "status_"+string(th.RequestStatus))
		b.WriteString("\n")
		b.WriteString(l.Format(lang, "chat_line", th.Other.DisplayName, th.Other.ID, th.Thread.RequestID, status, last))
	}
	return b.String()
}
