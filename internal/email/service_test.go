package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSendCustom(t *testing.T) {
	d := &fakeDialer{}
	svc := &smtpService{dialer: d, from: "noreply@lifeline.test"}

	require.NoError(t, svc.SendCustom(context.Background(), "donor@example.com", "Booked", "See you soon"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"donor@example.com"}, d.sent[0].GetHeader("To"))

	var buf bytes.Buffer
	_, err := d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "See you soon")
}

func TestSendCustom_DialError(t *testing.T) {
	svc := &smtpService{dialer: &fakeDialer{err: errors.New("refused")}, from: "x@y.z"}
	assert.Error(t, svc.SendCustom(context.Background(), "a@b.c", "s", "c"))
}
