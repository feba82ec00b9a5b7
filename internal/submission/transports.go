package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/example/champaran-pos/internal/models"
)

// PostNoResponse posts the payload and ignores the response entirely. Any
// answer, even an error status, counts as unconfirmed delivery.
type PostNoResponse struct {
	URL    string
	Client *http.Client
}

func (t *PostNoResponse) Name() string   { return "post-no-response" }
func (t *PostNoResponse) Confirms() bool { return false }

func (t *PostNoResponse) Send(ctx context.Context, payload models.IntakePayload) error {
	resp, err := postJSON(ctx, t.Client, t.URL, payload)
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	drain(resp)
	return nil
}

// QueryGet sends the payload as query parameters on a GET request, with the
// item list flattened into one field.
type QueryGet struct {
	URL    string
	Client *http.Client
}

func (t *QueryGet) Name() string   { return "get-query" }
func (t *QueryGet) Confirms() bool { return false }

func (t *QueryGet) Send(ctx context.Context, payload models.IntakePayload) error {
	q, err := payload.Query()
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}

	sep := "?"
	if strings.Contains(t.URL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL+sep+q.Encode(), nil)
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	drain(resp)
	return nil
}

// CheckedPost posts the payload and requires a success envelope back. It is
// the only transport that can see an application-level rejection.
type CheckedPost struct {
	URL    string
	Client *http.Client
}

func (t *CheckedPost) Name() string   { return "post-checked" }
func (t *CheckedPost) Confirms() bool { return true }

func (t *CheckedPost) Send(ctx context.Context, payload models.IntakePayload) error {
	resp, err := postJSON(ctx, t.Client, t.URL, payload)
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: errors.Wrap(err, "read response")}
	}

	var out models.IntakeResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ApplicationError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &TransportError{Transport: t.Name(), Err: errors.Wrap(decodeErr, "decode response")}
	}
	if out.Status != models.IntakeStatusSuccess {
		msg := out.Message
		if msg == "" {
			msg = "server returned error status"
		}
		return &ApplicationError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

// DefaultTransports is the standard order: unconfirmed POST, query GET, then
// a fully checked POST.
func DefaultTransports(client *http.Client, url string) []Transport {
	return []Transport{
		&PostNoResponse{URL: url, Client: client},
		&QueryGet{URL: url, Client: client},
		&CheckedPost{URL: url, Client: client},
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload models.IntakePayload) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
