package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// SessionKey is the persistence key for one conversation's dialog session.
func SessionKey(conversationID string) string {
	return fmt.Sprintf("dialog:%s", conversationID)
}

// CredentialKey is the persistence key for one user's API credential.
func CredentialKey(userID string) string {
	return fmt.Sprintf("credential:%s", userID)
}

// ReplyChannel is the pub/sub channel carrying outbound replies for one
// conversation to the transport connector.
func ReplyChannel(conversationID string) string {
	return fmt.Sprintf("replies:%s", conversationID)
}
