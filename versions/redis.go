package versions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var ErrNilClient = errors.New("versions: nil redis client")

var _ Store = (*Redis)(nil)

// Redis shares counters across processes and survives restarts. Keys are
// "ver:<ns>:<resource>" and never expire.
type Redis struct {
	rdb         redis.UniversalClient
	ns          string // should match the query cache namespace
	closeClient bool
}

func NewRedis(client redis.UniversalClient, namespace string, closeClient bool) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: client, ns: namespace, closeClient: closeClient}, nil
}

func (s *Redis) key(resource string) string { return "ver:" + s.ns + ":" + resource }

func (s *Redis) Current(ctx context.Context, resource string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(resource)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis version parse: %w", err)
	}
	return u, nil
}

func (s *Redis) Bump(ctx context.Context, resource string) (uint64, error) {
	v, err := s.rdb.Incr(ctx, s.key(resource)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// Close closes the client only when the store owns it.
func (s *Redis) Close(context.Context) error {
	if !s.closeClient {
		return nil
	}
	return s.rdb.Close()
}
