package chathub

import "pratojusto/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// GetUserID returns the bound user, or 0 for an anonymous connection.
	GetUserID() uint
	// GetConnID identifies this connection among the user's other connections.
	GetConnID() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// envelopes intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's pumps.
	Run()
	// Close shuts the client down. It must be safe to call more than once.
	Close()
}
