package cached

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-records-service/internal/adapter/cache"
	domain "user-records-service/internal/domain/user"
	"user-records-service/internal/usecase/user"
)

// SessionFactory decorates a user.SessionFactory with a read-through cache.
// Repositories handed out by WithSession serve GetByID from the cache and
// invalidate the ids they write once the session has finished.
type SessionFactory struct {
	inner user.SessionFactory
	cache cache.UserCache
	log   *zap.Logger
	group singleflight.Group
}

// NewSessionFactory wraps inner with cache. A nil cache disables caching.
func NewSessionFactory(inner user.SessionFactory, c cache.UserCache, log *zap.Logger) *SessionFactory {
	return &SessionFactory{
		inner: inner,
		cache: c,
		log:   log,
	}
}

// WithSession runs fn inside a session of the wrapped factory.
func (f *SessionFactory) WithSession(ctx context.Context, fn func(repo user.Repository) error) error {
	if f.cache == nil {
		return f.inner.WithSession(ctx, fn)
	}

	var dirty dirtySet
	err := f.inner.WithSession(ctx, func(repo user.Repository) error {
		return fn(&cachedUserRepository{dbRepo: repo, factory: f, dirty: &dirty})
	})

	// Invalidate after commit or rollback so readers never cache
	// a value from an open transaction. DeleteMultiple also bumps each id's
	// generation, which voids fills that read the row before this point.
	if ids := dirty.ids(); len(ids) > 0 {
		if cerr := f.cache.DeleteMultiple(context.WithoutCancel(ctx), ids...); cerr != nil {
			f.log.Warn("failed to invalidate cache after session", zap.Int64s("ids", ids), zap.Error(cerr))
		}
	}

	return err
}

// dirtySet records ids written during a session.
type dirtySet struct {
	mu  sync.Mutex
	set map[int64]struct{}
}

func (d *dirtySet) add(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.set == nil {
		d.set = make(map[int64]struct{})
	}
	d.set[id] = struct{}{}
}

func (d *dirtySet) has(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.set[id]
	return ok
}

func (d *dirtySet) ids() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, 0, len(d.set))
	for id := range d.set {
		out = append(out, id)
	}
	return out
}

// cachedUserRepository implements user.Repository for a single session.
type cachedUserRepository struct {
	dbRepo  user.Repository
	factory *SessionFactory
	dirty   *dirtySet
}

// Create delegates to the DB repository and marks the new id as written.
func (r *cachedUserRepository) Create(ctx context.Context, u *domain.User) (int64, error) {
	id, err := r.dbRepo.Create(ctx, u)
	if err != nil {
		return 0, err
	}
	r.dirty.add(id)
	return id, nil
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
func (r *cachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	// Ids written in this session are only visible through the session itself.
	if r.dirty.has(id) {
		return r.dbRepo.GetByID(ctx, id)
	}

	c := r.factory.cache
	log := r.factory.log

	cachedUser, err := c.Get(ctx, id)
	if err != nil {
		log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if cachedUser != nil {
		log.Debug("user retrieved from cache", zap.Int64("id", id))
		return cachedUser, nil
	}

	// Cache miss - use single-flight to prevent stampede
	result, err, _ := r.factory.group.Do(cache.CacheKey(id), func() (any, error) {
		// Double-check cache in case another request populated it while we were waiting
		if cachedUser, err := c.Get(ctx, id); err == nil && cachedUser != nil {
			log.Debug("user retrieved from cache after single-flight wait", zap.Int64("id", id))
			return cachedUser, nil
		}

		// The generation is read before the row. A session that invalidates
		// this id after our read bumps it and the fill below is dropped.
		gen, genErr := c.Generation(ctx, id)

		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if genErr != nil {
			log.Warn("cache generation unavailable, not caching user", zap.Int64("id", id), zap.Error(genErr))
			return u, nil
		}
		if _, err := c.SetIfGeneration(ctx, u, gen); err != nil {
			log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
		}

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.User), nil
}

// GetByEmail delegates to the DB repository.
func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.dbRepo.GetByEmail(ctx, email)
}

// Update writes through to the DB and marks the id for invalidation.
func (r *cachedUserRepository) Update(ctx context.Context, u *domain.User) (int64, error) {
	r.dirty.add(u.ID)
	return r.dbRepo.Update(ctx, u)
}

// Delete removes the user from the DB and marks the id for invalidation.
func (r *cachedUserRepository) Delete(ctx context.Context, id int64) (int64, error) {
	r.dirty.add(id)
	return r.dbRepo.Delete(ctx, id)
}

// List delegates to the DB repository.
func (r *cachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.List(ctx)
}
