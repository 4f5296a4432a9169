package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xowlabs/expopulse/pkg/logging"
)

const keyPrefixLease = "lease:recording:"

// releaseScript deletes the lease key only when the caller still holds it,
// so a slow run cannot release a lease a later run re-acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// LeaseManager hands out per-recording processing leases. Exactly one
// pipeline run may hold a recording's lease at a time; a second concurrent
// trigger gets ErrLeaseHeld instead of interleaving badge writes.
type LeaseManager struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewLeaseManager creates a LeaseManager. The TTL bounds how long a
// crashed worker can block reprocessing; it should exceed the worst-case
// pipeline run.
func NewLeaseManager(client *redis.Client, ttl time.Duration, logger logging.Logger) *LeaseManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LeaseManager{
		client: client,
		ttl:    ttl,
		logger: logger.With(logging.F("component", "lease")),
	}
}

// Lease is a held processing lease. Release it when the run finishes.
type Lease struct {
	manager     *LeaseManager
	recordingID string
	token       string
}

// Acquire takes the processing lease for a recording. Returns ErrLeaseHeld
// when another run holds it.
func (m *LeaseManager) Acquire(ctx context.Context, recordingID string) (*Lease, error) {
	token := uuid.New().String()
	key := keyPrefixLease + recordingID

	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease for recording %s: %w", recordingID, err)
	}
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", recordingID, ErrLeaseHeld)
	}

	m.logger.Debug("lease acquired", logging.F("recording_id", recordingID))

	return &Lease{
		manager:     m,
		recordingID: recordingID,
		token:       token,
	}, nil
}

// Release gives the lease back. Releasing a lease that expired and was
// re-acquired by another run is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	key := keyPrefixLease + l.recordingID
	if err := l.manager.client.Eval(ctx, releaseScript, []string{key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease for recording %s: %w", l.recordingID, err)
	}
	l.manager.logger.Debug("lease released", logging.F("recording_id", l.recordingID))
	return nil
}
