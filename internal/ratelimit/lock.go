package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const jobLeasePrefix = "fintrack:lease:job:"

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out per-job leases so only one instance runs a background
// job at a time. A nil Locker runs everything locally.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

// Lease is a held job lease. It expires on its own after the ttl it was
// acquired with.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func jobLeaseKey(job string) string {
	return jobLeasePrefix + job
}

// AcquireJob reports false without error while another instance holds job.
func (l *Locker) AcquireJob(ctx context.Context, job string, ttl time.Duration) (*Lease, bool, error) {
	job = strings.TrimSpace(job)
	if job == "" {
		return nil, false, errors.New("lease job name is empty")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lease ttl must be positive")
	}
	if l == nil || l.client == nil {
		return &Lease{key: jobLeaseKey(job)}, true, nil
	}

	lease := &Lease{locker: l, key: jobLeaseKey(job), token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return lease, true, nil
}

// Release drops the lease unless it already expired and was taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil || l.locker.client == nil {
		return nil
	}
	return l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
}
