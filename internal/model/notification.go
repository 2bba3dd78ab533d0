package model

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
)

// Notification is one best-effort outbound message.
type Notification struct {
	Channel   NotificationChannel
	Recipient string
	Subject   string
	Content   string
}
