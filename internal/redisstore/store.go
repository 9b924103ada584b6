// Package redisstore implements links.Store on Redis. Every mutation is a Lua
// script so the existence check, status check and write run as one unit.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"shortcut-service/internal/links"
)

const (
	// DefaultKeyPrefix namespaces every key the store writes.
	DefaultKeyPrefix = "shortcut:"

	linkKeyFormat = "link:%s" // hash per record
	codeKeyFormat = "code:%s" // code -> id
	activeKey     = "active"  // sorted set of active ids scored by creation time
)

// Script results for the "no record" and "record retired" cases.
const (
	resultMissing = 0
	resultRetired = 1
)

// insertScript claims the code with SETNX and writes the record only if the
// claim succeeded.
var insertScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2],
	'id', ARGV[1], 'code', ARGV[2], 'target', ARGV[3], 'visits', '0',
	'owner', ARGV[4], 'status', ARGV[5], 'created_at', ARGV[6], 'updated_at', ARGV[6])
redis.call('ZADD', KEYS[3], ARGV[6], ARGV[1])
return 1
`)

// mutateScript sets ARGV[3] to ARGV[4] (or increments visits when ARGV[3] is
// "visits") on an active record and returns the whole hash.
var mutateScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return 0
end
if status ~= ARGV[1] then
	return 1
end
if ARGV[3] == 'visits' then
	redis.call('HINCRBY', KEYS[1], 'visits', 1)
else
	redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// retireScript flips an active record to retired; a retired record is
// returned untouched.
var retireScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return 0
end
if status == ARGV[1] then
	redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
	redis.call('ZREM', KEYS[2], ARGV[4])
end
return redis.call('HGETALL', KEYS[1])
`)

// Store implements links.Store with Redis storage
type Store struct {
	redis     *redis.Client
	keyPrefix string
	now       func() time.Time
}

var _ links.Store = (*Store)(nil)

type Option func(s *Store)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// New creates a Store. The client is owned by the caller.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		redis:     client,
		keyPrefix: DefaultKeyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect parses a redis:// URL, opens a client and pings it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *Store) linkKey(id string) string {
	return s.keyPrefix + fmt.Sprintf(linkKeyFormat, id)
}

func (s *Store) codeKey(code string) string {
	return s.keyPrefix + fmt.Sprintf(codeKeyFormat, code)
}

func (s *Store) activeKey() string {
	return s.keyPrefix + activeKey
}

// Insert implements links.Store.Insert
func (s *Store) Insert(ctx context.Context, link *links.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}
	link.UpdatedAt = link.CreatedAt

	ok, err := insertScript.Run(ctx, s.redis,
		[]string{s.codeKey(link.Code), s.linkKey(link.ID), s.activeKey()},
		link.ID, link.Code, link.Target, link.Owner, string(link.Status), link.CreatedAt.UnixNano(),
	).Int()
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	if ok == 0 {
		return links.ErrDuplicateCode
	}
	return nil
}

// FindByCode implements links.Store.FindByCode
func (s *Store) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	id, err := s.redis.Get(ctx, s.codeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, links.ErrNotFound
		}
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// FindByID implements links.Store.FindByID
func (s *Store) FindByID(ctx context.Context, id string) (*links.Link, error) {
	fields, err := s.redis.HGetAll(ctx, s.linkKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, links.ErrNotFound
	}
	return decode(fields)
}

// UpdateTarget implements links.Store.UpdateTarget
func (s *Store) UpdateTarget(ctx context.Context, id, target string) (*links.Link, error) {
	return s.mutate(ctx, id, "target", target)
}

// IncrementVisits implements links.Store.IncrementVisits
func (s *Store) IncrementVisits(ctx context.Context, id string) (*links.Link, error) {
	return s.mutate(ctx, id, "visits", "")
}

func (s *Store) mutate(ctx context.Context, id, field, value string) (*links.Link, error) {
	res, err := mutateScript.Run(ctx, s.redis,
		[]string{s.linkKey(id)},
		string(links.StatusActive), s.now().UnixNano(), field, value,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("update link %s: %w", field, err)
	}
	return scriptResult(res)
}

// Retire implements links.Store.Retire
func (s *Store) Retire(ctx context.Context, id string) (*links.Link, error) {
	res, err := retireScript.Run(ctx, s.redis,
		[]string{s.linkKey(id), s.activeKey()},
		string(links.StatusActive), string(links.StatusRetired), s.now().UnixNano(), id,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("retire link: %w", err)
	}
	return scriptResult(res)
}

// ListActive implements links.Store.ListActive
func (s *Store) ListActive(ctx context.Context, page links.Page) ([]*links.Link, int64, error) {
	total, err := s.redis.ZCard(ctx, s.activeKey()).Result()
	if err != nil {
		return nil, 0, err
	}

	start := int64(page.Offset)
	stop := int64(-1)
	if page.Limit > 0 {
		stop = start + int64(page.Limit) - 1
	}
	ids, err := s.redis.ZRevRange(ctx, s.activeKey(), start, stop).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []*links.Link{}, total, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.linkKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, err
	}

	result := make([]*links.Link, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		link, err := decode(fields)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, link)
	}
	return result, total, nil
}

func scriptResult(res interface{}) (*links.Link, error) {
	switch v := res.(type) {
	case int64:
		switch v {
		case resultMissing:
			return nil, links.ErrNotFound
		case resultRetired:
			return nil, links.ErrInvalidState
		}
		return nil, fmt.Errorf("unexpected script status %d", v)
	case []interface{}:
		fields := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			key, _ := v[i].(string)
			val, _ := v[i+1].(string)
			fields[key] = val
		}
		return decode(fields)
	default:
		return nil, fmt.Errorf("unexpected script result %T", res)
	}
}

func decode(fields map[string]string) (*links.Link, error) {
	visits, err := strconv.ParseInt(fields["visits"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode visits: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	updated, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}
	status := links.Status(fields["status"])
	if !status.Valid() {
		return nil, fmt.Errorf("decode status: unknown value %q", status)
	}
	return &links.Link{
		ID:        fields["id"],
		Code:      fields["code"],
		Target:    fields["target"],
		Visits:    visits,
		Owner:     fields["owner"],
		Status:    status,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}
