package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores token records in Redis, one hash per token plus a
// list preserving insertion order. It exists for deployments that run
// more than one gateway process against the same token pool; the
// single-process default is MemoryLedger.
type RedisLedger struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLedger creates a ledger backed by the given Redis client.
func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "eggman:"
	}
	return &RedisLedger{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisLedger) key(id string) string {
	return l.prefix + "tok:" + id
}

func (l *RedisLedger) orderKey() string {
	return l.prefix + "order"
}

func (l *RedisLedger) Issue(ctx context.Context, id string) error {
	created, err := l.client.HSetNX(ctx, l.key(id), "token", id).Result()
	if err != nil {
		return fmt.Errorf("redis issue: %w", err)
	}
	fields := map[string]interface{}{
		"created_at": l.now().Format(time.RFC3339Nano),
		"status":     string(StatusPending),
	}
	if err := l.client.HSet(ctx, l.key(id), fields).Err(); err != nil {
		return fmt.Errorf("redis issue: %w", err)
	}
	if created {
		if err := l.client.RPush(ctx, l.orderKey(), id).Err(); err != nil {
			return fmt.Errorf("redis issue: %w", err)
		}
	} else {
		// Re-issue resets the record, same as the in-memory ledger.
		if err := l.client.HDel(ctx, l.key(id), "used_at", "file_name", "blob_id", "blob_object_id", "wallet").Err(); err != nil {
			return fmt.Errorf("redis issue: %w", err)
		}
	}
	return nil
}

func (l *RedisLedger) Lookup(ctx context.Context, id string) (*Record, error) {
	fields, err := l.client.HGetAll(ctx, l.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}
	return recordFromFields(fields)
}

// redeemScript transitions a pending token to redeemed in one round trip,
// returning the prior status so the caller can map the failure.
var redeemScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if not status then return "missing" end
if status ~= "pending" then return status end
redis.call("HSET", KEYS[1], "status", "redeemed", "used_at", ARGV[1])
return "ok"
`)

func (l *RedisLedger) Redeem(ctx context.Context, id string) (*Record, error) {
	res, err := redeemScript.Run(ctx, l.client, []string{l.key(id)}, l.now().Format(time.RFC3339Nano)).Text()
	if err != nil {
		return nil, fmt.Errorf("redis redeem: %w", err)
	}
	switch res {
	case "ok":
		return l.Lookup(ctx, id)
	case "missing":
		return nil, ErrTokenNotFound
	case string(StatusExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrTokenUsed
	}
}

var expireScript = redis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if not status then return "missing" end
if status ~= "pending" then return "noop" end
redis.call("HSET", KEYS[1], "status", "expired", "used_at", ARGV[1])
return "ok"
`)

func (l *RedisLedger) Expire(ctx context.Context, id string) error {
	res, err := expireScript.Run(ctx, l.client, []string{l.key(id)}, l.now().Format(time.RFC3339Nano)).Text()
	if err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	if res == "missing" {
		return ErrTokenNotFound
	}
	return nil
}

func (l *RedisLedger) Attach(ctx context.Context, id string, info BlobInfo) error {
	exists, err := l.client.Exists(ctx, l.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis attach: %w", err)
	}
	if exists == 0 {
		return ErrTokenNotFound
	}
	// HSetNX keeps the fields write-once.
	pairs := map[string]string{
		"file_name":      info.FileName,
		"blob_id":        info.BlobID,
		"blob_object_id": info.BlobObjectID,
		"wallet":         info.Wallet,
	}
	for field, val := range pairs {
		if val == "" {
			continue
		}
		if err := l.client.HSetNX(ctx, l.key(id), field, val).Err(); err != nil {
			return fmt.Errorf("redis attach: %w", err)
		}
	}
	return nil
}

func (l *RedisLedger) All(ctx context.Context) ([]*Record, error) {
	ids, err := l.client.LRange(ctx, l.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis all: %w", err)
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := l.Lookup(ctx, id)
		if err == ErrTokenNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *RedisLedger) FindByBlobID(ctx context.Context, blobID string) (*Record, error) {
	records, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.BlobID == blobID {
			return rec, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (l *RedisLedger) Stats(ctx context.Context) (Stats, error) {
	records, err := l.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, rec := range records {
		s.Total++
		switch rec.Status {
		case StatusRedeemed:
			s.Redeemed++
			s.Used++
		case StatusExpired:
			s.Expired++
			s.Used++
		default:
			s.Unused++
		}
	}
	return s, nil
}

func recordFromFields(fields map[string]string) (*Record, error) {
	rec := &Record{
		Token:        fields["token"],
		Status:       Status(fields["status"]),
		FileName:     fields["file_name"],
		BlobID:       fields["blob_id"],
		BlobObjectID: fields["blob_object_id"],
		Wallet:       fields["wallet"],
	}
	if raw := fields["created_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("redis record: bad created_at: %w", err)
		}
		rec.CreatedAt = t
	}
	if raw := fields["used_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("redis record: bad used_at: %w", err)
		}
		rec.UsedAt = &t
	}
	return rec, nil
}
