// Package events publishes contact change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Kind string

const (
	Created Kind = "contact.created"
	Updated Kind = "contact.updated"
	Deleted Kind = "contact.deleted"
	// FolderCleared is sent once after every contact of a folder was
	// removed with the folder.
	FolderCleared Kind = "folder.cleared"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	ContextID int       `json:"cid"`
	FolderID  int       `json:"folder_id"`
	ObjectID  int       `json:"id,omitempty"`
	UserID    int       `json:"user_id"`
	Time      time.Time `json:"time"`
	// OldFolderID is set when an update moved the contact.
	OldFolderID int `json:"old_folder_id,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher sends events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// DialRedis opens a client from a redis:// URL and checks the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// LogPublisher only logs events. It is used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Debug().
		Str("kind", string(ev.Kind)).
		Int("cid", ev.ContextID).
		Int("folder", ev.FolderID).
		Int("id", ev.ObjectID).
		Int("user", ev.UserID).
		Msg("contact event")
	return nil
}
