package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/mail"
	"github.com/iliyamo/mensa-reservation/internal/model"
)

// Publisher turns domain events into NotificationEvents and hands them
// to the broker in the background.  Callers never wait for the broker
// and never see its errors: a failed publish is logged and dropped.
type Publisher struct {
	broker   Broker
	log      logrus.FieldLogger
	timeout  time.Duration
	currency string
	wg       sync.WaitGroup
}

func NewPublisher(b Broker, log logrus.FieldLogger, currency string) *Publisher {
	return &Publisher{broker: b, log: log, timeout: 5 * time.Second, currency: currency}
}

func (p *Publisher) ReservationConfirmed(ctx context.Context, u model.User, r model.Reservation, m model.Menu, amount decimal.Decimal) {
	msg := reservationMessage(mail.KindConfirmation, u, r, m)
	msg.Amount = amount.StringFixed(2) + " " + p.currency
	p.dispatch(ctx, newEvent(u.ID, msg))
}

func (p *Publisher) ReservationCancelled(ctx context.Context, u model.User, r model.Reservation, m model.Menu) {
	p.dispatch(ctx, newEvent(u.ID, reservationMessage(mail.KindCancellation, u, r, m)))
}

func (p *Publisher) PickupReminder(ctx context.Context, u model.User, r model.Reservation, m model.Menu) {
	p.dispatch(ctx, newEvent(u.ID, reservationMessage(mail.KindPickupReminder, u, r, m)))
}

func (p *Publisher) PasswordReset(ctx context.Context, u model.User, token string, ttl time.Duration) {
	p.dispatch(ctx, newEvent(u.ID, mail.Message{
		Kind:       mail.KindPasswordReset,
		To:         u.Email,
		Name:       u.DisplayName(),
		ResetToken: token,
		ExpiresMin: int(ttl / time.Minute),
	}))
}

// Wait blocks until every background publish has finished.  Used on
// shutdown.
func (p *Publisher) Wait() { p.wg.Wait() }

func (p *Publisher) dispatch(ctx context.Context, ev NotificationEvent) {
	// detach from the request: it usually ends before the publish does
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.WithField("event_id", ev.ID).Errorf("notification publish panicked: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		body, err := json.Marshal(ev)
		if err == nil {
			err = p.broker.Publish(ctx, body)
		}
		if err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"event_id": ev.ID,
				"kind":     ev.Message.Kind,
				"user_id":  ev.UserID,
			}).Warn("notification dropped")
		}
	}()
}

func reservationMessage(kind mail.Kind, u model.User, r model.Reservation, m model.Menu) mail.Message {
	msg := mail.Message{
		Kind:          kind,
		To:            u.Email,
		Name:          u.DisplayName(),
		ReservationID: r.ID,
		MenuDate:      m.DateString(),
		PickupSlot:    r.PickupSlot,
		Dishes:        dishes(m),
	}
	if r.Note != nil {
		msg.Note = *r.Note
	}
	return msg
}

func dishes(m model.Menu) []string {
	out := []string{m.FirstCourse, m.MainCourse, m.SideDish}
	if m.Fruit != nil && *m.Fruit != "" {
		out = append(out, *m.Fruit)
	}
	if m.Dessert != nil && *m.Dessert != "" {
		out = append(out, *m.Dessert)
	}
	return out
}
