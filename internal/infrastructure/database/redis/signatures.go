package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// SignatureStore implements invoice.SignatureStore on Redis. Two structures
// per signature: a plain key on the content hash for the exact check, and a
// per-vendor sorted set scored by issue date for the fuzzy window scan. Both
// expire after the configured TTL, which bounds the duplicate lookback.
type SignatureStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewSignatureStore builds the store over an established client.
func NewSignatureStore(client *Client, cfg config.RedisConfig, logger logging.Logger) *SignatureStore {
	return &SignatureStore{
		rdb:    client.Redis(),
		prefix: cfg.KeyPrefix,
		ttl:    cfg.SignatureTTL,
		logger: logger.Named("signatures"),
	}
}

func (s *SignatureStore) hashKey(hash string) string {
	return s.prefix + "sig:" + hash
}

func (s *SignatureStore) vendorKey(vendorID common.ID) string {
	return s.prefix + "vendor:" + string(vendorID)
}

// Seen implements invoice.SignatureStore.
func (s *SignatureStore) Seen(ctx context.Context, hash string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.hashKey(hash)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "signature existence check failed")
	}
	return n > 0, nil
}

// RecentByVendor implements invoice.SignatureStore.
func (s *SignatureStore) RecentByVendor(ctx context.Context, vendorID common.ID, from, to time.Time) ([]invoice.Signature, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.vendorKey(vendorID), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "vendor signature scan failed")
	}

	out := make([]invoice.Signature, 0, len(members))
	for _, m := range members {
		var sig invoice.Signature
		if err := json.Unmarshal([]byte(m), &sig); err != nil {
			// A corrupt member is skipped rather than failing the whole
			// duplicate check.
			s.logger.Warn("skipping undecodable signature member",
				logging.String("vendor_id", string(vendorID)), logging.Err(err))
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// Record implements invoice.SignatureStore.
func (s *SignatureStore) Record(ctx context.Context, sig invoice.Signature) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode signature")
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.hashKey(sig.Hash), string(sig.InvoiceID), s.ttl)
	pipe.ZAdd(ctx, s.vendorKey(sig.VendorID), redis.Z{
		Score:  float64(sig.IssueDate.Unix()),
		Member: string(payload),
	})
	pipe.Expire(ctx, s.vendorKey(sig.VendorID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to record signature")
	}
	return nil
}
