package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	termcore "github.com/clinterm/termcore"
)

type client struct {
	conn      *Connection
	isOwner   bool
	marshaler termcore.Marshaler
}

// NewClient wraps the singleton connection in a termcore.Cache. The
// connection must have been opened with OpenConnection beforehand.
func NewClient() termcore.Cache {
	return &client{
		conn:      connection,
		marshaler: termcore.NewMarshaler(),
	}
}

// NewConnectionClient opens a new, separate Redis connection and returns a
// cache wrapper owning it. Call Close on the returned value when done.
func NewConnectionClient(options Options) interface {
	termcore.Cache
	Close() error
} {
	c := openConnection(options)
	return &client{
		conn:      c,
		isOwner:   true,
		marshaler: termcore.NewMarshaler(),
	}
}

// Close this client's connection, when it owns one.
func (c *client) Close() error {
	if !c.isOwner || c.conn == nil {
		return nil
	}
	err := closeConnection(c.conn)
	c.conn = nil
	return err
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (c client) keyNotFound(err error) bool {
	return err == redis.Nil
}

// Ping tests connectivity for redis (PONG should be returned).
func (c client) Ping(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	_, err := c.conn.Client.Ping(ctx).Result()
	return err
}

// Clear the cache. Be cautious calling this method as it will clear the Redis cache.
func (c client) Clear(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	return c.conn.Client.FlushDB(ctx).Err()
}

// SetStruct executes the redis Set command on the marshaled value.
func (c client) SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error {
	if c.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new client")
	}

	// No caching if expiration < 0.
	if expiration < 0 {
		return nil
	}

	ba, err := c.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	return c.conn.Client.Set(ctx, key, ba, expiration).Err()
}

// GetStruct executes the redis Get command and unmarshals into target.
func (c client) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	if c.conn == nil {
		return false, fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	if target == nil {
		return false, fmt.Errorf("target can't be nil")
	}
	ba, err := c.conn.Client.Get(ctx, key).Bytes()
	if err == nil {
		err = c.marshaler.Unmarshal(ba, target)
	}

	// Convert key not found into returning false and nil err.
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	}
	return r, err
}

// Delete executes the redis Del command.
func (c client) Delete(ctx context.Context, keys ...string) (bool, error) {
	if c.conn == nil {
		return false, fmt.Errorf("Redis connection is not open, 'can't create new client")
	}
	rs := c.conn.Client.Del(ctx, keys...)

	err := rs.Err()
	// Convert key not found into returning false and nil err.
	r := err == nil
	if c.keyNotFound(err) {
		err = nil
	}
	return r, err
}
