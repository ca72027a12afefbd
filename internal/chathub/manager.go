package chathub

import (
	"context"
	"sync"

	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"
	"pratojusto/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// ClientRestorer rebuilds a transport client for a user after a restart.
type ClientRestorer func(user models.User) (Client, error)

// ManagerService is the hub. One goroutine (Run) owns the client index; every
// user has one private destination reaching all of that user's connections.
type ManagerService struct {
	// userID -> connID -> Client
	clients map[uint]map[string]Client
	mu      sync.RWMutex

	RegisterCh   chan Client
	UnregisterCh chan Client
	// PubSubCh carries deliveries to fan out on this instance, whether they
	// came from the broker or from a local Deliver.
	PubSubCh chan models.Delivery

	// done is closed when Run returns.
	done chan struct{}

	broker   storage.Broker
	presence storage.Presence
	log      logrus.FieldLogger

	ClientRestorer ClientRestorer
}

// NewManagerService wires the hub. broker and presence may be nil, in which
// case delivery stays in-process and presence is not tracked.
func NewManagerService(broker storage.Broker, presence storage.Presence, log logrus.FieldLogger) *ManagerService {
	return &ManagerService{
		clients:      make(map[uint]map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		PubSubCh:     make(chan models.Delivery, 256),
		done:         make(chan struct{}),
		broker:       broker,
		presence:     presence,
		log:          logger.OrStandard(log).WithField("component", "hub"),
	}
}

func (m *ManagerService) SetClientRestorer(restorer ClientRestorer) {
	m.ClientRestorer = restorer
}

// RestoreClientSession rebuilds and registers the client of a user whose
// transport survives restarts (Telegram chats).
func (m *ManagerService) RestoreClientSession(user models.User) error {
	if m.ClientRestorer == nil {
		return nil
	}
	client, err := m.ClientRestorer(user)
	if err != nil {
		return err
	}
	m.RegisterCh <- client
	client.Run()
	m.log.WithField("user_id", user.ID).Info("restored client session")
	return nil
}

// Run is the dispatcher loop. It returns when ctx is done.
func (m *ManagerService) Run(ctx context.Context) {
	m.StartPubSubListener(ctx)

	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.shutdown()
			return

		case client := <-m.RegisterCh:
			m.register(ctx, client)

		case client := <-m.UnregisterCh:
			m.unregister(ctx, client)

		case d := <-m.PubSubCh:
			m.fanOut(ctx, d)
		}
	}
}

// Unregister hands client to the loop. After Run has returned it does
// nothing, so transports can always call it on their way out.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
	}
}

// Deliver addresses env to the user's private destination. Delivery is
// fire-and-forget: users without live connections simply miss it.
func (m *ManagerService) Deliver(ctx context.Context, userID uint, env models.Envelope) error {
	d := models.Delivery{UserID: userID, Envelope: env}
	if m.broker != nil {
		err := m.broker.PublishDelivery(ctx, d)
		if err == nil {
			return nil
		}
		m.log.WithError(err).WithField("user_id", userID).Warn("broker publish failed, delivering locally")
	}

	select {
	case m.PubSubCh <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ManagerService) register(ctx context.Context, client Client) {
	userID := client.GetUserID()
	if userID == 0 {
		m.log.WithField("conn_id", client.GetConnID()).Warn("refusing to register an unbound client")
		return
	}

	m.mu.Lock()
	conns, ok := m.clients[userID]
	if !ok {
		conns = make(map[string]Client)
		m.clients[userID] = conns
	}
	conns[client.GetConnID()] = client
	count := len(conns)
	m.mu.Unlock()

	if m.presence != nil {
		if err := m.presence.MarkOnline(ctx, userID, client.GetConnID()); err != nil {
			m.log.WithError(err).Warn("presence update failed")
		}
	}
	m.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"conn_id":     client.GetConnID(),
		"connections": count,
	}).Debug("client registered")
}

// unregister drops the client from the index, if present, and closes it.
func (m *ManagerService) unregister(ctx context.Context, client Client) {
	m.remove(ctx, client)
	client.Close()
}

func (m *ManagerService) remove(ctx context.Context, client Client) {
	userID := client.GetUserID()

	m.mu.Lock()
	conns, ok := m.clients[userID]
	if ok {
		if current, found := conns[client.GetConnID()]; !found || current != client {
			ok = false
		} else {
			delete(conns, client.GetConnID())
			if len(conns) == 0 {
				delete(m.clients, userID)
			}
		}
	}
	m.mu.Unlock()

	if ok && m.presence != nil {
		if err := m.presence.MarkOffline(ctx, userID, client.GetConnID()); err != nil {
			m.log.WithError(err).Warn("presence update failed")
		}
	}
}

func (m *ManagerService) fanOut(ctx context.Context, d models.Delivery) {
	m.mu.RLock()
	targets := make([]Client, 0, len(m.clients[d.UserID]))
	for _, c := range m.clients[d.UserID] {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.GetSendChannel() <- d.Envelope:
		default:
			// Slow client: its buffer is full, drop the connection.
			m.log.WithFields(logrus.Fields{
				"user_id": d.UserID,
				"conn_id": client.GetConnID(),
			}).Warn("send buffer full, dropping client")
			m.unregister(ctx, client)
		}
	}
}

func (m *ManagerService) shutdown() {
	m.mu.Lock()
	all := m.clients
	m.clients = make(map[uint]map[string]Client)
	m.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.Close()
		}
	}
}

// IsConnected reports whether the user has a live connection on this instance.
func (m *ManagerService) IsConnected(userID uint) bool {
	return m.ConnectionCount(userID) > 0
}

func (m *ManagerService) ConnectionCount(userID uint) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// ClientFor returns one of the user's clients matching the predicate.
func (m *ManagerService) ClientFor(userID uint, match func(Client) bool) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients[userID] {
		if match(c) {
			return c, true
		}
	}
	return nil, false
}
