package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	tokenCalls int32
	lastAuth   string
	lastPath   string
	lastBody   sendMailRequest
	status     int
}

func (f *fakeGraph) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1.0/users/", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		f.lastPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastBody))
		w.WriteHeader(f.status)
	})
	return mux
}

func newTestSender(t *testing.T, f *fakeGraph) *GraphSender {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	s, err := NewGraphSender(context.Background(), GraphConfig{
		ClientID:     "app-id",
		ClientSecret: "secret",
		Sender:       "billing@example.com",
		GraphURL:     srv.URL + "/v1.0",
		TokenURL:     srv.URL + "/token",
	})
	require.NoError(t, err)
	return s
}

func TestGraphSenderSendsMessage(t *testing.T) {
	f := &fakeGraph{status: http.StatusAccepted}
	s := newTestSender(t, f)

	err := s.Send(context.Background(), Message{
		To:      []string{"ap@acme.io"},
		CC:      []string{"cfo@acme.io"},
		Subject: "Invoice INV-2026-001",
		Body:    "Please find attached.",
		Attachments: []Attachment{
			{Name: "INV-2026-001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", f.lastAuth)
	assert.Equal(t, "/v1.0/users/billing@example.com/sendMail", f.lastPath)
	assert.True(t, f.lastBody.SaveToSentItems)
	assert.Equal(t, "Invoice INV-2026-001", f.lastBody.Message.Subject)
	require.Len(t, f.lastBody.Message.ToRecipients, 1)
	assert.Equal(t, "ap@acme.io", f.lastBody.Message.ToRecipients[0].EmailAddress.Address)
	require.Len(t, f.lastBody.Message.CcRecipients, 1)
	assert.Empty(t, f.lastBody.Message.BccRecipients)
	require.Len(t, f.lastBody.Message.Attachments, 1)
	att := f.lastBody.Message.Attachments[0]
	assert.Equal(t, "#microsoft.graph.fileAttachment", att.ODataType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), att.ContentBytes)
}

func TestGraphSenderReusesToken(t *testing.T) {
	f := &fakeGraph{status: http.StatusAccepted}
	s := newTestSender(t, f)

	msg := Message{To: []string{"ap@acme.io"}, Subject: "x"}
	require.NoError(t, s.Send(context.Background(), msg))
	require.NoError(t, s.Send(context.Background(), msg))

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))
}

func TestGraphSenderReportsNonAccepted(t *testing.T) {
	f := &fakeGraph{status: http.StatusForbidden}
	s := newTestSender(t, f)

	err := s.Send(context.Background(), Message{To: []string{"ap@acme.io"}, Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestGraphSenderRequiresRecipients(t *testing.T) {
	f := &fakeGraph{status: http.StatusAccepted}
	s := newTestSender(t, f)

	err := s.Send(context.Background(), Message{Subject: "x"})
	assert.Error(t, err)
	assert.Empty(t, f.lastPath)
}

func TestNewGraphSenderValidatesConfig(t *testing.T) {
	_, err := NewGraphSender(context.Background(), GraphConfig{ClientID: "app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id")
	assert.Contains(t, err.Error(), "client_secret")
	assert.Contains(t, err.Error(), "sender")
}

func TestDisabledSender(t *testing.T) {
	assert.ErrorIs(t, Disabled{}.Send(context.Background(), Message{}), ErrDisabled)
}
