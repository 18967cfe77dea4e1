package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for gists.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	now          func() time.Time
}

// NewClient creates a new gist client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		now:          time.Now,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Create stores a new gist owned by owner and publishes a created event.
func (c *Client) Create(ctx context.Context, owner string, p Payload) (*Gist, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	nowMs := c.now().UnixMilli()
	g := &Gist{
		ID:          ulid.Make().String(),
		Owner:       owner,
		Description: p.Description,
		Public:      p.Public,
		Files:       p.Files,
		CreatedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}

	if err := c.write(ctx, g); err != nil {
		return nil, err
	}
	if err := c.publish(ctx, EventCreated, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Update replaces the contents of an existing gist. Only the owner may update it:
// anyone else gets ErrForbidden. A missing gist returns redis.Nil (see IsNotFound).
func (c *Client) Update(ctx context.Context, id, owner string, p Payload) (*Gist, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	g, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Owner != owner {
		return nil, fmt.Errorf("update %s by %s: %w", id, owner, ErrForbidden)
	}

	g.Description = p.Description
	g.Public = p.Public
	g.Files = p.Files
	g.UpdatedAtMs = c.now().UnixMilli()

	if err := c.write(ctx, g); err != nil {
		return nil, err
	}
	if err := c.publish(ctx, EventUpdated, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Get retrieves a gist by ID.
// Returns (nil, redis.Nil) if the gist doesn't exist. Use IsNotFound() to check.
func (c *Client) Get(ctx context.Context, id string) (*Gist, error) {
	hashData, err := c.rdb.HGetAll(ctx, GistKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read gist from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	g, err := HashToGist(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize gist: %w", err)
	}
	return g, nil
}

// Exists reports whether a gist with id is stored.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, GistKey(c.instanceName, id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check gist: %w", err)
	}
	return n > 0, nil
}

// ScanIDs returns the sorted ids of every gist whose id starts with prefix. prefix must
// not contain glob characters.
func (c *Client) ScanIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := GistKey(c.instanceName, "")

	var ids []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan gists: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// ListByOwner returns up to limit gists owned by owner, most recently created first.
// A limit of zero or less returns all of them.
func (c *Client) ListByOwner(ctx context.Context, owner string, limit int) ([]*Gist, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := c.rdb.ZRevRange(ctx, OwnerGistsKey(c.instanceName, owner), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list gists: %w", err)
	}

	gists := make([]*Gist, 0, len(ids))
	for _, id := range ids {
		g, err := c.Get(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		gists = append(gists, g)
	}
	return gists, nil
}

func (c *Client) write(ctx context.Context, g *Gist) error {
	hash, err := GistToHash(g)
	if err != nil {
		return fmt.Errorf("failed to serialize gist: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, GistKey(c.instanceName, g.ID), hash)
		pipe.ZAdd(ctx, OwnerGistsKey(c.instanceName, g.Owner), redis.Z{
			Score:  float64(g.CreatedAtMs),
			Member: g.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write gist to Redis: %w", err)
	}
	return nil
}

func (c *Client) publish(ctx context.Context, eventType EventType, g *Gist) error {
	eventJSON, err := json.Marshal(Event{Type: eventType, Gist: g})
	if err != nil {
		return fmt.Errorf("failed to marshal gist event: %w", err)
	}

	if err := c.rdb.Publish(ctx, GistEventsChannel(c.instanceName), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish gist event: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to gist events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of gist events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors. Undecodable messages are
// reported here and skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to gist events for this instance.
// Events are delivered on a buffered channel (size 10); delivery is at-most-once.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, GistEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to gist events: %w", err)
	}

	eventsChan := make(chan *Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal gist event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error indicates a gist was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
