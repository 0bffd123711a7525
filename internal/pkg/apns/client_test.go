package apns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPassUpdate(t *testing.T) {
	var gotPath, gotTopic, gotPushType, gotPriority string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTopic = r.Header.Get("apns-topic")
		gotPushType = r.Header.Get("apns-push-type")
		gotPriority = r.Header.Get("apns-priority")
		w.Header().Set("apns-id", "9C6F1B1E-0000-0000-0000-000000000001")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.Client(), srv.URL)
	require.NoError(t, c.PushPassUpdate(context.Background(), "abc123", "pass.com.example"))
	assert.Equal(t, "/3/device/abc123", gotPath)
	assert.Equal(t, "pass.com.example", gotTopic)
	assert.Equal(t, "background", gotPushType)
	assert.Equal(t, "5", gotPriority)
}

func TestPushPassUpdateUnregistered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(`{"reason":"Unregistered","timestamp":1700000000000}`))
	}))
	defer srv.Close()

	err := NewClientWithHTTP(srv.Client(), srv.URL).PushPassUpdate(context.Background(), "tok", "topic")
	assert.ErrorIs(t, err, ErrUnregistered)
}

func TestPushPassUpdateBadDeviceToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason":"BadDeviceToken"}`))
	}))
	defer srv.Close()

	err := NewClientWithHTTP(srv.Client(), srv.URL).PushPassUpdate(context.Background(), "tok", "topic")
	assert.ErrorIs(t, err, ErrUnregistered)
}

func TestPushPassUpdateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason":"TopicDisallowed"}`))
	}))
	defer srv.Close()

	err := NewClientWithHTTP(srv.Client(), srv.URL).PushPassUpdate(context.Background(), "tok", "topic")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnregistered)
	assert.Contains(t, err.Error(), "TopicDisallowed")
}

func TestNewClientMissingCertificate(t *testing.T) {
	_, err := NewClient(Config{CertFile: "testdata/missing.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apns certificate")

	_, err = NewClient(Config{CertFile: "testdata/missing.p12", Password: "secret"})
	require.Error(t, err)
}
