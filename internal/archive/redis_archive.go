package archive

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/example/champaran-pos/internal/models"
)

const defaultPrefix = "pos"

// appendScript indexes and stores an order in one step. It returns -1 when
// the order number is taken, otherwise the new index length. RPUSH runs
// before HSET so a failed push leaves nothing behind.
var appendScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return -1
end
local size = redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return size
`)

// RedisArchive stores orders in Redis: a list keeps insertion order and a
// hash holds the documents by order number. When maxEntries is positive the
// oldest orders are evicted past that bound, together with their delivery
// records and stashed proofs.
type RedisArchive struct {
	client     redis.UniversalClient
	prefix     string
	maxEntries int64
}

// NewRedisArchive returns an archive using client. maxEntries <= 0 disables eviction.
func NewRedisArchive(client redis.UniversalClient, maxEntries int64) *RedisArchive {
	return &RedisArchive{client: client, prefix: defaultPrefix, maxEntries: maxEntries}
}

func (a *RedisArchive) indexKey() string    { return a.prefix + ":orders:index" }
func (a *RedisArchive) ordersKey() string   { return a.prefix + ":orders:data" }
func (a *RedisArchive) deliveryKey() string { return a.prefix + ":orders:delivery" }
func (a *RedisArchive) proofKey(n string) string {
	return a.prefix + ":orders:proof:" + n
}

// Append stores order at the end of the archive.
func (a *RedisArchive) Append(ctx context.Context, order models.Order) error {
	if order.OrderNumber == "" {
		return errors.New("order number is required")
	}

	doc, err := json.Marshal(order)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}

	keys := []string{a.ordersKey(), a.indexKey()}
	size, err := appendScript.Run(ctx, a.client, keys, order.OrderNumber, doc).Int64()
	if err != nil {
		return errors.Wrap(err, "store order")
	}
	if size < 0 {
		return errors.Wrap(ErrDuplicateOrder, order.OrderNumber)
	}

	if a.maxEntries > 0 && size > a.maxEntries {
		a.evict(ctx, size-a.maxEntries)
	}
	return nil
}

func (a *RedisArchive) evict(ctx context.Context, n int64) {
	for i := int64(0); i < n; i++ {
		oldest, err := a.client.LPop(ctx, a.indexKey()).Result()
		if err != nil {
			log.WithError(err).Warn("[Archive] eviction stopped")
			return
		}
		_, err = a.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HDel(ctx, a.ordersKey(), oldest)
			p.HDel(ctx, a.deliveryKey(), oldest)
			p.Del(ctx, a.proofKey(oldest))
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("order_number", oldest).Warn("[Archive] failed to drop evicted order")
			continue
		}
		log.WithField("order_number", oldest).Info("[Archive] evicted oldest order")
	}
}

// All returns every archived order in insertion order.
func (a *RedisArchive) All(ctx context.Context) ([]models.Order, error) {
	numbers, err := a.client.LRange(ctx, a.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read order index")
	}
	if len(numbers) == 0 {
		return []models.Order{}, nil
	}

	docs, err := a.client.HMGet(ctx, a.ordersKey(), numbers...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read orders")
	}

	orders := make([]models.Order, 0, len(docs))
	for i, raw := range docs {
		s, ok := raw.(string)
		if !ok {
			log.WithField("order_number", numbers[i]).Warn("[Archive] indexed order has no document")
			continue
		}
		var o models.Order
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			return nil, errors.Wrapf(err, "decode order %s", numbers[i])
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// FindByOrderNumber returns one archived order.
func (a *RedisArchive) FindByOrderNumber(ctx context.Context, orderNumber string) (models.Order, error) {
	var o models.Order
	if err := a.getJSON(ctx, a.ordersKey(), orderNumber, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

// RecordDelivery stores the latest delivery outcome of an order.
func (a *RedisArchive) RecordDelivery(ctx context.Context, orderNumber string, status models.DeliveryStatus) error {
	doc, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, "encode delivery status")
	}
	if err := a.client.HSet(ctx, a.deliveryKey(), orderNumber, doc).Err(); err != nil {
		return errors.Wrap(err, "store delivery status")
	}
	return nil
}

// Delivery returns the recorded delivery outcome of an order.
func (a *RedisArchive) Delivery(ctx context.Context, orderNumber string) (models.DeliveryStatus, error) {
	var s models.DeliveryStatus
	if err := a.getJSON(ctx, a.deliveryKey(), orderNumber, &s); err != nil {
		return models.DeliveryStatus{}, err
	}
	return s, nil
}

// StoreProof keeps a payment screenshot for later recovery.
func (a *RedisArchive) StoreProof(ctx context.Context, orderNumber string, proof models.StoredProof) error {
	doc, err := json.Marshal(proof)
	if err != nil {
		return errors.Wrap(err, "encode proof")
	}
	if err := a.client.Set(ctx, a.proofKey(orderNumber), doc, 0).Err(); err != nil {
		return errors.Wrap(err, "store proof")
	}
	return nil
}

// Proof returns a stashed payment screenshot.
func (a *RedisArchive) Proof(ctx context.Context, orderNumber string) (models.StoredProof, error) {
	var p models.StoredProof
	raw, err := a.client.Get(ctx, a.proofKey(orderNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, errors.Wrap(ErrNotFound, orderNumber)
	}
	if err != nil {
		return p, errors.Wrap(err, "read proof")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.Wrap(err, "decode proof")
	}
	return p, nil
}

func (a *RedisArchive) getJSON(ctx context.Context, key, field string, dst any) error {
	raw, err := a.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return errors.Wrap(ErrNotFound, field)
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(err, "decode %s", field)
	}
	return nil
}
