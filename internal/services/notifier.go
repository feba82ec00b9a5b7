package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/models"
)

// OrderNotifier is told about intake orders after they are stored.
type OrderNotifier interface {
	Name() string
	NotifyNewOrder(ctx context.Context, order models.OrderRecord) error
	NotifyStatusChange(ctx context.Context, order models.OrderRecord, previous string) error
}

// NotifierTimeout bounds one notifier call made by NewOrder or StatusChange.
const NotifierTimeout = 10 * time.Second

// Notifiers fans an event out to every configured notifier. Failures are
// logged and never returned.
type Notifiers []OrderNotifier

// NewOrder runs every notifier's NotifyNewOrder.
func (ns Notifiers) NewOrder(order models.OrderRecord) {
	ns.each(order.OrderNumber, func(ctx context.Context, n OrderNotifier) error {
		return n.NotifyNewOrder(ctx, order)
	})
}

// StatusChange runs every notifier's NotifyStatusChange.
func (ns Notifiers) StatusChange(order models.OrderRecord, previous string) {
	ns.each(order.OrderNumber, func(ctx context.Context, n OrderNotifier) error {
		return n.NotifyStatusChange(ctx, order, previous)
	})
}

func (ns Notifiers) each(orderNumber string, fn func(context.Context, OrderNotifier) error) {
	for _, n := range ns {
		ctx, cancel := context.WithTimeout(context.Background(), NotifierTimeout)
		if err := fn(ctx, n); err != nil {
			log.WithFields(log.Fields{"order_number": orderNumber, "notifier": n.Name()}).
				WithError(err).Warn("[Notify] notifier failed")
		}
		cancel()
	}
}

// Dispatcher runs notifications in the background and keeps count of the
// ones still running so shutdown can wait for them. A nil Dispatcher does
// nothing.
type Dispatcher struct {
	notifiers Notifiers
	wg        sync.WaitGroup
}

// NewDispatcher returns a Dispatcher over ns.
func NewDispatcher(ns Notifiers) *Dispatcher {
	return &Dispatcher{notifiers: ns}
}

// NewOrder notifies about order without blocking the caller.
func (d *Dispatcher) NewOrder(order models.OrderRecord) {
	d.spawn(func() { d.notifiers.NewOrder(order) })
}

// StatusChange notifies about a status change without blocking the caller.
func (d *Dispatcher) StatusChange(order models.OrderRecord, previous string) {
	d.spawn(func() { d.notifiers.StatusChange(order, previous) })
}

func (d *Dispatcher) spawn(fn func()) {
	if d == nil || len(d.notifiers) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Wait blocks until every started notification has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
