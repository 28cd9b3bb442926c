// Package queue carries notification e-mails over RabbitMQ: services
// publish a NotificationEvent and the consumer renders and sends it.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/mensa-reservation/internal/mail"
)

// NotificationsQueue is the durable queue both sides declare.
const NotificationsQueue = "mensa.notifications"

// NotificationEvent is one e-mail to send.  It carries everything the
// template needs so the consumer never queries the database.
type NotificationEvent struct {
	ID         string       `json:"id"`
	UserID     uint64       `json:"user_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Message    mail.Message `json:"message"`
}

func newEvent(userID uint64, m mail.Message) NotificationEvent {
	return NotificationEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Message:    m,
	}
}
