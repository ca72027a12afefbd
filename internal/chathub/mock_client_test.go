package chathub_test

import (
	"context"
	"sync"

	"pratojusto/backend/internal/chathub"
	"pratojusto/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockClient is an in-memory connection. Hub traffic lands in RecvChannel,
// direct replies in Replies.
type MockClient struct {
	session     *chathub.Session
	attrs       map[string]string
	RecvChannel chan models.Envelope

	mu      sync.Mutex
	replies []models.Envelope
	closed  int
}

func newMockClient(connID string) *MockClient {
	return &MockClient{
		session:     chathub.NewSession(connID),
		attrs:       map[string]string{},
		RecvChannel: make(chan models.Envelope, 10),
	}
}

// newBoundClient returns a client whose session is already bound to userID.
func newBoundClient(connID string, userID uint) *MockClient {
	c := newMockClient(connID)
	_ = c.session.Bind(chathub.Principal{UserID: userID, DisplayName: "user"})
	return c
}

func (c *MockClient) GetUserID() uint                         { return c.session.UserID() }
func (c *MockClient) GetConnID() string                       { return c.session.ConnID }
func (c *MockClient) GetSendChannel() chan<- models.Envelope { return c.RecvChannel }
func (c *MockClient) GetSession() *chathub.Session            { return c.session }
func (c *MockClient) Attributes() map[string]string           { return c.attrs }
func (c *MockClient) Run()                                    {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *MockClient) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Reply(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, env)
	return true
}

func (c *MockClient) Replies() []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Envelope(nil), c.replies...)
}

// MockSender stands in for the router in dispatcher tests.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, senderID, recipientID uint, body string) (*models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockAuthenticator binds a fixed principal when told to succeed.
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, s *chathub.Session, headers, attributes map[string]string) bool {
	args := m.Called(ctx, s, headers, attributes)
	if args.Bool(0) {
		_ = s.Bind(args.Get(1).(chathub.Principal))
	}
	return args.Bool(0)
}

// recordingDeliverer captures deliveries instead of pushing them.
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []models.Delivery
}

func (d *recordingDeliverer) Deliver(_ context.Context, userID uint, env models.Envelope) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, models.Delivery{UserID: userID, Envelope: env})
	return nil
}

func (d *recordingDeliverer) recipients() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint, 0, len(d.deliveries))
	for _, x := range d.deliveries {
		out = append(out, x.UserID)
	}
	return out
}

func (d *recordingDeliverer) all() []models.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Delivery(nil), d.deliveries...)
}
