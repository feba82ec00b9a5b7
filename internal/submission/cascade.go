// Package submission delivers orders to the remote intake endpoint through an
// ordered list of transports.
package submission

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/models"
)

// Outcome is the three-valued result of one delivery attempt.
type Outcome int

const (
	// Failed means the transport raised an error.
	Failed Outcome = iota
	// Unconfirmed means the request went out but acceptance cannot be seen.
	Unconfirmed
	// Confirmed means the endpoint acknowledged the order.
	Confirmed
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return string(models.DeliveryConfirmed)
	case Unconfirmed:
		return string(models.DeliveryUnconfirmed)
	default:
		return string(models.DeliveryFailed)
	}
}

// Transport is one way of getting a payload to the intake endpoint.
type Transport interface {
	Name() string
	// Confirms reports whether a nil error from Send proves acceptance.
	Confirms() bool
	Send(ctx context.Context, payload models.IntakePayload) error
}

// Attempt is the record of one transport try.
type Attempt struct {
	Transport string
	Outcome   Outcome
	Err       error
}

// Report summarizes a cascade run.
type Report struct {
	Outcome   Outcome
	Transport string
	Attempts  []Attempt
	Err       error
}

// Delivered reports whether some transport took the order.
func (r Report) Delivered() bool {
	return r.Outcome != Failed
}

// Status converts the report to the archive's delivery record.
func (r Report) Status(at time.Time) models.DeliveryStatus {
	s := models.DeliveryStatus{
		Outcome:   models.DeliveryOutcome(r.Outcome.String()),
		Transport: r.Transport,
		At:        at,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Cascade tries transports strictly one after another.
type Cascade struct {
	transports          []Transport
	timeout             time.Duration
	requireConfirmation bool
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithTimeout bounds each transport attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Cascade) { c.timeout = d }
}

// WithRequiredConfirmation makes the cascade move on after an unconfirmed
// attempt, stopping only at a confirmed one. This raises the chance of the
// endpoint receiving the same order more than once.
func WithRequiredConfirmation() Option {
	return func(c *Cascade) { c.requireConfirmation = true }
}

// NewCascade returns a Cascade over transports in the given order.
func NewCascade(transports []Transport, opts ...Option) *Cascade {
	c := &Cascade{transports: transports}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs the cascade. It stops at the first attempt that is good enough
// and never returns a panic or an error to the caller; failures live in the
// Report.
func (c *Cascade) Submit(ctx context.Context, payload models.IntakePayload) Report {
	report := Report{Outcome: Failed}
	logger := log.WithField("order_number", payload.OrderNumber)

	for _, t := range c.transports {
		a := c.attempt(ctx, t, payload)
		report.Attempts = append(report.Attempts, a)

		entry := logger.WithFields(log.Fields{"transport": t.Name(), "outcome": a.Outcome.String()})
		if a.Err != nil {
			entry.WithError(a.Err).Warn("[Submit] transport failed")
			report.Err = a.Err
		} else {
			entry.Info("[Submit] transport finished")
		}

		if a.Outcome > report.Outcome {
			report.Outcome = a.Outcome
			report.Transport = a.Transport
		}
		if a.Outcome == Confirmed || (a.Outcome == Unconfirmed && !c.requireConfirmation) {
			break
		}
	}

	if report.Delivered() {
		report.Err = nil
	} else if report.Err == nil {
		report.Err = errors.New("no transports configured")
	}
	return report
}

func (c *Cascade) attempt(ctx context.Context, t Transport, payload models.IntakePayload) (a Attempt) {
	a = Attempt{Transport: t.Name(), Outcome: Failed}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			a.Outcome = Failed
			a.Err = &TransportError{Transport: t.Name(), Err: errors.Errorf("panic: %v", r)}
		}
	}()

	if err := t.Send(ctx, payload); err != nil {
		a.Err = err
		return a
	}
	if t.Confirms() {
		a.Outcome = Confirmed
	} else {
		a.Outcome = Unconfirmed
	}
	return a
}
