package httpapi

import (
	"context"
	"time"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/provider"
)

// tracked is an async invocation kept for polling.
type tracked struct {
	action  string
	pending *process.Pending
}

// invocationStore keeps async invocations addressable by id. Running
// invocations never expire; finished ones live for ttl.
type invocationStore struct {
	store *provider.MemoryStore[tracked]
	ttl   time.Duration
	log   *logger.Logger
}

func newInvocationStore(ttl time.Duration, log *logger.Logger) *invocationStore {
	return &invocationStore{
		store: provider.NewMemoryStore[tracked](),
		ttl:   ttl,
		log:   log,
	}
}

// track stores p and, once it finishes, calls release and starts its TTL.
func (s *invocationStore) track(ctx context.Context, action string, p *process.Pending, release func()) {
	t := &tracked{action: action, pending: p}
	_ = s.store.Save(ctx, p.ID(), t, 0)

	go func() {
		<-p.Done()
		release()
		_ = s.store.Save(context.WithoutCancel(ctx), p.ID(), t, s.ttl)
		s.log.WithContext(ctx).Debug("async invocation finished", logger.Fields(
			logger.FieldInvocationID, p.ID(),
			logger.FieldAction, action,
			logger.FieldStatus, p.State().String(),
		))
	}()
}

func (s *invocationStore) get(ctx context.Context, id string) (*tracked, error) {
	t, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, goerrors.NotFound("invocation", id)
	}
	return t, nil
}

// sweep drops expired invocations every interval until ctx is done.
func (s *invocationStore) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.Sweep(); n > 0 {
				s.log.Debug("expired invocations dropped", logger.Fields("count", n))
			}
		}
	}
}

// size counts stored invocations, expired ones not yet swept included.
func (s *invocationStore) size() int {
	return s.store.Len()
}
