// Package upload sends payment screenshots to a public image store, falling
// back across providers.
package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Image is an uploaded file as received from the customer.
type Image struct {
	Data     []byte
	MimeType string
	Name     string
}

// Provider stores an image under fileName and returns its public URL.
type Provider interface {
	Name() string
	Upload(ctx context.Context, img Image, fileName string) (string, error)
}

// Result is either a public URL or an error; it is never both.
type Result struct {
	PublicURL string
	Provider  string
	FileName  string
	Err       error
}

// OK reports whether the image reached a store.
func (r Result) OK() bool {
	return r.Err == nil && r.PublicURL != ""
}

// UploadError lists the failure of every provider tried.
type UploadError struct {
	Failures map[string]error
}

func (e *UploadError) Error() string {
	if len(e.Failures) == 0 {
		return "upload: no image providers configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for name, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return "upload failed: " + strings.Join(parts, "; ")
}

type guardedProvider struct {
	Provider
	breaker *gobreaker.CircuitBreaker[string]
}

// Client tries providers in order until one returns a URL. Each provider sits
// behind its own circuit breaker so a dead store is skipped quickly.
type Client struct {
	providers []guardedProvider
	timeout   time.Duration
	now       func() time.Time
}

// NewClient builds a Client. timeout bounds each provider attempt.
func NewClient(timeout time.Duration, providers ...Provider) *Client {
	c := &Client{timeout: timeout, now: time.Now}
	for _, p := range providers {
		c.providers = append(c.providers, guardedProvider{
			Provider: p,
			breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
				Name:        p.Name(),
				MaxRequests: 1,
				Timeout:     time.Minute,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.WithFields(log.Fields{"provider": name, "from": from.String(), "to": to.String()}).
						Warn("[Upload] circuit state changed")
				},
			}),
		})
	}
	return c
}

// Upload sends img to the first provider that accepts it. Failures are
// reported in Result.Err, never as a panic.
func (c *Client) Upload(ctx context.Context, img Image) Result {
	fileName := c.fileName(img)
	failures := make(map[string]error)

	for _, p := range c.providers {
		url, err := c.attempt(ctx, p, img, fileName)
		if err == nil && url != "" {
			log.WithFields(log.Fields{"provider": p.Name(), "file": fileName}).Info("[Upload] image stored")
			return Result{PublicURL: url, Provider: p.Name(), FileName: fileName}
		}
		if err == nil {
			err = errors.New("provider returned no url")
		}
		log.WithError(err).WithField("provider", p.Name()).Warn("[Upload] provider failed, trying next")
		failures[p.Name()] = err
	}

	return Result{FileName: fileName, Err: &UploadError{Failures: failures}}
}

func (c *Client) attempt(ctx context.Context, p guardedProvider, img Image, fileName string) (url string, err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("provider panicked: %v", r)
		}
	}()

	return p.breaker.Execute(func() (string, error) {
		return p.Upload(ctx, img, fileName)
	})
}

func (c *Client) fileName(img Image) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(img.Name)), ".")
	if ext == "" {
		ext = extensionFor(img.MimeType)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("payment-%d-%s.%s", c.now().UnixMilli(), suffix, ext)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}
