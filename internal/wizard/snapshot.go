package wizard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Snapshot is the only wizard state persisted outside process memory. It is
// rewritten on every transition and read back once when a session resumes.
type Snapshot struct {
	Step           Step        `json:"step"`
	InstallationID *uuid.UUID  `json:"installation_id,omitempty"`
	TariffID       *uuid.UUID  `json:"tariff_id,omitempty"`
	InvestmentIDs  []uuid.UUID `json:"investment_ids"`
	SkippedSteps   []Step      `json:"skipped_steps"`
	Completed      bool        `json:"completed"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		Step:          StepWelcome,
		InvestmentIDs: []uuid.UUID{},
		SkippedSteps:  []Step{},
	}
}

// SnapshotStore is the persistence port for wizard snapshots. Load returns
// (nil, nil) when no snapshot exists or the stored one cannot be decoded; a
// broken snapshot is indistinguishable from a fresh session.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

const snapshotKeyPrefix = "wizard:snapshot:"

// RedisSnapshotStore keeps snapshots in Redis with a TTL so abandoned
// sessions age out.
type RedisSnapshotStore struct {
	Rdb *redis.Client
	TTL time.Duration
}

func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	b, err := s.Rdb.Get(ctx, snapshotKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, nil
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Rdb.Set(ctx, snapshotKeyPrefix+sessionID, b, s.TTL).Err()
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	return s.Rdb.Del(ctx, snapshotKeyPrefix+sessionID).Err()
}

// MemorySnapshotStore backs sessions when no Redis is configured (dev, tests).
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: map[string]Snapshot{}}
}

func (s *MemorySnapshotStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[sessionID]
	if !ok {
		return nil, nil
	}
	cp := snap
	return &cp, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, sessionID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[sessionID] = snap
	return nil
}

func (s *MemorySnapshotStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}
