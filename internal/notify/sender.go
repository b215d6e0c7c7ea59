package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrInvalidToken marks a delivery failure caused by the token itself
// (unregistered or malformed). Callers detect it with errors.Is; every other
// send error is treated as transient.
var ErrInvalidToken = errors.New("push token invalid or unregistered")

// Sender delivers one push notification to one device token.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// --------------------------------------------------------------------------
// FCM sender
// --------------------------------------------------------------------------

// FCMSender sends push notifications via Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender initializes the Firebase Admin SDK from a credentials file or
// a raw service-account JSON blob (for cloud hosting where files are
// awkward). Exactly one of the two must be non-empty.
func NewFCMSender(ctx context.Context, credentialsFile, credentialsJSON string, logger *slog.Logger) (*FCMSender, error) {
	var opt option.ClientOption
	switch {
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	case credentialsFile != "":
		opt = option.WithCredentialsFile(credentialsFile)
	default:
		return nil, fmt.Errorf("no FCM credentials configured")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("create messaging client: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// Send delivers one message. Android and APNS blocks match what the
// nextClass app registers for (high-importance channel, default sound).
func (s *FCMSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	badge := 1
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:      "@mipmap/ic_launcher",
				Color:     "#172C3D",
				Sound:     "default",
				ChannelID: "high_importance_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}

	_, err := s.client.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// Unavailable, internal, quota — all retryable on the next cycle.
	return fmt.Errorf("fcm send: %w", err)
}

// --------------------------------------------------------------------------
// Log sender
// --------------------------------------------------------------------------

// LogSender logs sends instead of delivering them. Used when FCM credentials
// are not configured (local development) so the rest of the engine still
// exercises end to end.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, token, title, body string, _ map[string]string) error {
	s.logger.Info("Push send (FCM not configured)",
		"token_len", len(token), "title", title, "body", body)
	return nil
}
