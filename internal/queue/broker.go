package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker delivers one message body to NotificationsQueue.
type Broker interface {
	Publish(ctx context.Context, body []byte) error
}

// AMQPBroker opens a connection per publish.  Notifications are rare
// (a handful per booking) so there is no pool to keep healthy.
type AMQPBroker struct {
	URL string
}

// dialTimeout bounds connection setup when ctx carries no deadline.
const dialTimeout = 5 * time.Second

func (b AMQPBroker) Publish(ctx context.Context, body []byte) error {
	timeout, err := connectBudget(ctx)
	if err != nil {
		return err
	}
	conn, err := amqp.DialConfig(b.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := declare(ch); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",                 // default exchange
		NotificationsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// connectBudget is the time left on ctx for dialing and the AMQP
// handshake.
func connectBudget(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return dialTimeout, nil
	}
	left := time.Until(dl)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}

func declare(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		NotificationsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	)
}
