package twilio_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/crewdesk/automation/pkg/senders"
	"github.com/crewdesk/automation/pkg/senders/twilio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSender_RequiredFields(t *testing.T) {
	_, err := twilio.NewSender(testLogger(), twilio.Config{AuthToken: "t", From: "+1"})
	assert.ErrorContains(t, err, "accountSid")

	_, err = twilio.NewSender(testLogger(), twilio.Config{AccountSID: "AC1", From: "+1"})
	assert.ErrorContains(t, err, "authToken")

	_, err = twilio.NewSender(testLogger(), twilio.Config{AccountSID: "AC1", AuthToken: "t"})
	assert.ErrorContains(t, err, "from")
}

func TestSender_SendSMS(t *testing.T) {
	var form url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer server.Close()

	sender, err := twilio.NewSender(testLogger(), twilio.Config{
		AccountSID: "AC123", AuthToken: "secret", From: "+15550001111", BaseURL: server.URL + "/",
	})
	require.NoError(t, err)

	err = sender.SendSMS(context.Background(), "+15552223333", "Your tech is on the way", senders.Correlation{WorkflowID: "wf-1"})
	require.NoError(t, err)

	assert.Equal(t, "+15552223333", form.Get("To"))
	assert.Equal(t, "+15550001111", form.Get("From"))
	assert.Equal(t, "Your tech is on the way", form.Get("Body"))
}

func TestSender_SendSMSErrorsAreClassifiable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	sender, err := twilio.NewSender(testLogger(), twilio.Config{
		AccountSID: "AC123", AuthToken: "secret", From: "+1", BaseURL: server.URL + "/", Timeout: time.Second,
	})
	require.NoError(t, err)

	err = sender.SendSMS(context.Background(), "+1", "hi", senders.Correlation{})
	assert.ErrorContains(t, err, "Too Many Requests")

	server.Close()

	err = sender.SendSMS(context.Background(), "+1", "hi", senders.Correlation{})
	assert.ErrorContains(t, err, "twilio network error")
}
