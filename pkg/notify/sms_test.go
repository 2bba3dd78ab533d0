package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+919876543210", r.PostForm.Get("To"))
		assert.Contains(t, r.PostForm.Get("Body"), "booked")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSMSSender(SMSConfig{
		BaseURL:    srv.URL,
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "whatsapp:+14155238886",
		ToPrefix:   "whatsapp:+91",
	}, nil)

	assert.NoError(t, s.Send(context.Background(), "9876543210", "Your appointment is booked"))
}

func TestSMSSend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSMSSender(SMSConfig{BaseURL: srv.URL, AccountSID: "AC1"}, nil)
	assert.Error(t, s.Send(context.Background(), "+15550001", "hi"))
}

func TestAddress(t *testing.T) {
	s := &twilioSender{cfg: SMSConfig{ToPrefix: "whatsapp:+91"}}
	assert.Equal(t, "whatsapp:+919000000000", s.Address("9000000000"))
	assert.Equal(t, "+15550001", s.Address("+15550001"))
	assert.Equal(t, "whatsapp:+15550001", s.Address("whatsapp:+15550001"))
}
