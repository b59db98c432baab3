// Package push delivers notifications to user devices through Firebase
// Cloud Messaging.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient sends push notifications via Firebase Cloud Messaging.
type FCMClient struct {
	messaging *messaging.Client
}

// NewFCMClient initializes the Firebase app from a service account JSON blob.
func NewFCMClient(ctx context.Context, projectID string, credentialsJSON []byte) (*FCMClient, error) {
	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: projectID},
		option.WithCredentialsJSON(credentialsJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("push: init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: init messaging client: %w", err)
	}
	return &FCMClient{messaging: client}, nil
}

// Push delivers a single notification to a device token.
func (c *FCMClient) Push(ctx context.Context, token, title, body string, data map[string]string) error {
	_, err := c.messaging.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	return nil
}
