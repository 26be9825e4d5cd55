package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path      string
	method    string
	token     string
	ctype     string
	requestID string
	body      []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{
			path:      r.URL.Path,
			method:    r.Method,
			token:     r.Header.Get(HeaderAPIToken),
			ctype:     r.Header.Get("Content-Type"),
			requestID: r.Header.Get(HeaderRequestID),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ts.Close)

	return ts, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestNewDoorStatusFormat(t *testing.T) {
	at := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	payload, err := FormatPayload(NewDoorStatus(false, at))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isOpen":false,"dateTime":"2026-02-02T22:18:12Z"}`, string(payload))
}

func TestPayloadShapes(t *testing.T) {
	p, err := FormatPayload(Temperature{TempF: 55.4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tempF":55.4}`, string(p))

	p, err = FormatPayload(Alert{Message: "The garage door is open @ 9:15 PM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"The garage door is open @ 9:15 PM"}`, string(p))
}

func TestHTTPClientRequests(t *testing.T) {
	ts, reqs := newCollector(t, http.StatusOK)
	c := NewHTTPClient(ts.URL+"/", "tok3n", time.Second)
	ctx := context.Background()

	at := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, c.UploadDoorStatus(ctx, NewDoorStatus(true, at)))
	require.NoError(t, c.UploadTemperature(ctx, Temperature{TempF: 41}))
	require.NoError(t, c.SendAlert(ctx, "hello"))

	got := reqs()
	require.Len(t, got, 3)

	wantPaths := []string{PathDoorStatus, PathTemp, PathSendAlert}
	wantBodies := []string{
		`{"isOpen":true,"dateTime":"2026-01-01T02:00:00Z"}`,
		`{"tempF":41}`,
		`{"message":"hello"}`,
	}
	for i, r := range got {
		assert.Equal(t, http.MethodPost, r.method)
		assert.Equal(t, wantPaths[i], r.path)
		assert.Equal(t, "tok3n", r.token)
		assert.Equal(t, "application/json", r.ctype)
		_, err := uuid.Parse(r.requestID)
		assert.NoError(t, err, "request id must be a uuid")
		assert.JSONEq(t, wantBodies[i], string(r.body))
	}
	assert.NotEqual(t, got[0].requestID, got[1].requestID)
}

func TestHTTPClientNon2xx(t *testing.T) {
	ts, _ := newCollector(t, http.StatusUnauthorized)
	c := NewHTTPClient(ts.URL, "bad", time.Second)

	err := c.SendAlert(context.Background(), "x")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, PathSendAlert, se.Path)
	assert.Contains(t, se.Error(), "401")
}

func TestHTTPClientUnreachable(t *testing.T) {
	ts, _ := newCollector(t, http.StatusOK)
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(url, "tok", time.Second)
	assert.Error(t, c.UploadTemperature(context.Background(), Temperature{TempF: 1}))
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		ts.Close()
	})

	c := NewHTTPClient(ts.URL, "tok", 100*time.Millisecond)
	start := time.Now()
	err := c.UploadDoorStatus(context.Background(), NewDoorStatus(true, start))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFakeClient(t *testing.T) {
	f := NewFakeClient()
	f.AlertError = errors.New("smtp down")

	ctx := context.Background()
	require.NoError(t, f.UploadDoorStatus(ctx, DoorStatus{IsOpen: true}))
	require.NoError(t, f.UploadTemperature(ctx, Temperature{TempF: 50}))
	assert.Error(t, f.SendAlert(ctx, "m"))

	assert.Equal(t, []string{"m"}, f.SentAlerts(), "failed alert is still recorded")
	assert.Len(t, f.SentDoorStatuses(), 1)
	assert.Len(t, f.SentTemperatures(), 1)

	f.Reset()
	assert.Empty(t, f.SentAlerts())
	assert.NoError(t, f.SendAlert(ctx, "m"))
}
