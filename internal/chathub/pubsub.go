package chathub

import (
	"context"
)

// StartPubSubListener forwards deliveries published by any instance into the
// hub loop. Without a broker it does nothing.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	if m.broker == nil {
		return
	}

	incoming, err := m.broker.SubscribeDeliveries(ctx)
	if err != nil {
		m.log.WithError(err).Error("broker subscription failed, cross-instance delivery disabled")
		return
	}

	go func() {
		for d := range incoming {
			select {
			case m.PubSubCh <- d:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() == nil {
			m.log.Warn("broker subscription closed")
		}
	}()
}
