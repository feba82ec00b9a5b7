package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// JSONEndpoint posts the image as base64 JSON to an upload function that
// answers with {"success": true, "url": ...}.
type JSONEndpoint struct {
	url    string
	client *http.Client
}

// NewJSONEndpoint returns a provider posting to endpointURL.
func NewJSONEndpoint(client *http.Client, endpointURL string) *JSONEndpoint {
	return &JSONEndpoint{url: endpointURL, client: client}
}

type endpointRequest struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type endpointResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	CustomURL string `json:"customUrl"`
	Error     string `json:"error"`
}

func (e *JSONEndpoint) Name() string { return "upload-endpoint" }

func (e *JSONEndpoint) Upload(ctx context.Context, img Image, fileName string) (string, error) {
	body, err := json.Marshal(endpointRequest{
		Name:     fileName,
		MimeType: img.MimeType,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	})
	if err != nil {
		return "", errors.Wrap(err, "encode upload request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload endpoint")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read upload response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("upload endpoint: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var out endpointResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.Wrap(err, "decode upload response")
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "upload rejected"
		}
		return "", errors.New(out.Error)
	}
	if out.CustomURL != "" {
		return out.CustomURL, nil
	}
	return out.URL, nil
}
