package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"pratojusto/backend/internal/apperr"
	"pratojusto/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// DeliveriesChannel is the Pub/Sub channel shared by every server instance.
const DeliveriesChannel = "deliveries"

func presenceKey(userID uint) string {
	return fmt.Sprintf("presence:%d", userID)
}

// PublishDelivery fans a delivery out to every instance.
func (s *Service) PublishDelivery(ctx context.Context, d models.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.Redis.Publish(ctx, DeliveriesChannel, payload).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SubscribeDeliveries streams deliveries published by any instance until ctx
// is done. Undecodable payloads are logged and skipped.
func (s *Service) SubscribeDeliveries(ctx context.Context) (<-chan models.Delivery, error) {
	pubsub := s.Redis.Subscribe(ctx, DeliveriesChannel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, apperr.Internal(err)
	}

	out := make(chan models.Delivery)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var d models.Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					logrus.WithError(err).Warn("dropping undecodable delivery")
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Presence is kept as a set of connection ids per user so that several tabs
// count as one online user.
func (s *Service) MarkOnline(ctx context.Context, userID uint, connID string) error {
	if err := s.Redis.SAdd(ctx, presenceKey(userID), connID).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) MarkOffline(ctx context.Context, userID uint, connID string) error {
	if err := s.Redis.SRem(ctx, presenceKey(userID), connID).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := s.Redis.SCard(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, apperr.Internal(err)
	}
	return n > 0, nil
}
