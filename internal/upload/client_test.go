package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngImage = Image{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png", Name: "Proof.PNG"}

type fakeProvider struct {
	name  string
	url   string
	err   error
	panic bool
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Upload(ctx context.Context, _ Image, fileName string) (string, error) {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.url + "/" + fileName, nil
}

func TestUpload_FirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "first", url: "https://a"}
	second := &fakeProvider{name: "second", url: "https://b"}
	c := NewClient(time.Second, first, second)

	res := c.Upload(context.Background(), pngImage)

	require.True(t, res.OK())
	assert.Equal(t, "first", res.Provider)
	assert.True(t, strings.HasPrefix(res.PublicURL, "https://a/payment-"))
	assert.True(t, strings.HasSuffix(res.FileName, ".png"))
	assert.Zero(t, second.calls.Load())
}

func TestUpload_FallsBack(t *testing.T) {
	first := &fakeProvider{name: "first", err: errors.New("down")}
	second := &fakeProvider{name: "second", url: "https://b"}
	c := NewClient(time.Second, first, second)

	res := c.Upload(context.Background(), pngImage)

	require.True(t, res.OK())
	assert.Equal(t, "second", res.Provider)
}

func TestUpload_AllFail(t *testing.T) {
	first := &fakeProvider{name: "first", err: errors.New("down")}
	second := &fakeProvider{name: "second", panic: true}
	c := NewClient(time.Second, first, second)

	res := c.Upload(context.Background(), pngImage)

	require.False(t, res.OK())
	var uerr *UploadError
	require.ErrorAs(t, res.Err, &uerr)
	assert.Len(t, uerr.Failures, 2)
	assert.Contains(t, uerr.Failures["second"].Error(), "panicked")
}

func TestUpload_NoProviders(t *testing.T) {
	res := NewClient(time.Second).Upload(context.Background(), pngImage)
	assert.False(t, res.OK())
	assert.Contains(t, res.Err.Error(), "no image providers")
}

func TestUpload_TimeoutPerProvider(t *testing.T) {
	slow := &fakeProvider{name: "slow", url: "https://slow", delay: time.Second}
	fast := &fakeProvider{name: "fast", url: "https://fast"}
	c := NewClient(20*time.Millisecond, slow, fast)

	res := c.Upload(context.Background(), pngImage)

	require.True(t, res.OK())
	assert.Equal(t, "fast", res.Provider)
}

func TestUpload_BreakerSkipsDeadProvider(t *testing.T) {
	dead := &fakeProvider{name: "dead", err: errors.New("down")}
	ok := &fakeProvider{name: "ok", url: "https://ok"}
	c := NewClient(time.Second, dead, ok)

	for i := 0; i < 5; i++ {
		require.True(t, c.Upload(context.Background(), pngImage).OK())
	}

	assert.Equal(t, int32(3), dead.calls.Load())
	assert.Equal(t, int32(5), ok.calls.Load())
}

func TestFileNameUsesMimeWhenNameHasNoExtension(t *testing.T) {
	c := NewClient(time.Second)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	name := c.fileName(Image{MimeType: "image/webp", Name: "screenshot"})

	assert.True(t, strings.HasPrefix(name, "payment-1700000000000-"))
	assert.True(t, strings.HasSuffix(name, ".webp"))
}

func TestSupabaseStorage(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"payment-screenshots/x.png"}`))
	}))
	defer srv.Close()

	p := NewSupabaseStorage(srv.Client(), srv.URL+"/", "anon", "payment-screenshots")
	url, err := p.Upload(context.Background(), pngImage, "x.png")

	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/payment-screenshots/x.png", gotPath)
	assert.Equal(t, "Bearer anon", gotAuth)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, pngImage.Data, gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/payment-screenshots/x.png", url)
}

func TestSupabaseStorage_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Duplicate"}`, http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewSupabaseStorage(srv.Client(), srv.URL, "anon", "b").Upload(context.Background(), pngImage, "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestJSONEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req endpointRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data, err := base64.StdEncoding.DecodeString(req.Data)
		require.NoError(t, err)
		assert.Equal(t, pngImage.Data, data)
		assert.Equal(t, "x.png", req.Name)
		_ = json.NewEncoder(w).Encode(endpointResponse{Success: true, URL: "https://blob/x.png", CustomURL: "https://shop/upload/x.png"})
	}))
	defer srv.Close()

	url, err := NewJSONEndpoint(srv.Client(), srv.URL).Upload(context.Background(), pngImage, "x.png")

	require.NoError(t, err)
	assert.Equal(t, "https://shop/upload/x.png", url)
}

func TestJSONEndpoint_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(endpointResponse{Success: false, Error: "quota exceeded"})
	}))
	defer srv.Close()

	_, err := NewJSONEndpoint(srv.Client(), srv.URL).Upload(context.Background(), pngImage, "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
