package credstore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/observability"
)

// ErrNotFound is returned by backends when no pair is stored under a key.
var ErrNotFound = errors.New("credential pair not found")

// Backend persists whole credential pairs under string keys. Implementations
// must write a pair as a single value so readers never observe half of one.
type Backend interface {
	Load(ctx context.Context, key string) (domain.CredentialPair, error)
	Save(ctx context.Context, key string, pair domain.CredentialPair) error
	Delete(ctx context.Context, key string) error
	// CompareAndSwap writes next only while the stored access token equals
	// expectedAccess. An empty next deletes the entry under the same condition.
	CompareAndSwap(ctx context.Context, key, expectedAccess string, next domain.CredentialPair) (bool, error)
}

// Store is the credential store of one domain. Backend failures are logged
// and never returned: an unreadable pair is the same as no pair.
type Store struct {
	backend Backend
	domain  domain.Domain
	key     string
	logger  *zap.Logger
}

// New binds backend to domain d under namespace.
func New(backend Backend, namespace string, d domain.Domain, logger *zap.Logger) *Store {
	if namespace == "" {
		namespace = "storefront"
	}
	return &Store{
		backend: backend,
		domain:  d,
		key:     namespace + ":credentials:" + d.Slug(),
		logger:  observability.OrNop(logger).Named("credstore").With(zap.String("domain", string(d))),
	}
}

// ForDomains builds one store per domain over a shared backend.
func ForDomains(backend Backend, namespace string, logger *zap.Logger) map[domain.Domain]*Store {
	stores := make(map[domain.Domain]*Store, len(domain.All()))
	for _, d := range domain.All() {
		stores[d] = New(backend, namespace, d, logger)
	}
	return stores
}

// Domain returns the domain the store belongs to.
func (s *Store) Domain() domain.Domain {
	return s.domain
}

// Get returns the stored pair, or false when none is usable.
func (s *Store) Get(ctx context.Context) (domain.CredentialPair, bool) {
	if s == nil || s.backend == nil {
		return domain.CredentialPair{}, false
	}
	pair, err := s.backend.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("credential backend read failed", zap.Error(err))
		}
		return domain.CredentialPair{}, false
	}
	if pair.Empty() {
		return domain.CredentialPair{}, false
	}
	return pair, true
}

// AccessToken returns the stored access token or "".
func (s *Store) AccessToken(ctx context.Context) string {
	pair, _ := s.Get(ctx)
	return pair.AccessToken
}

// Set replaces the stored pair. An empty access token clears the entry.
func (s *Store) Set(ctx context.Context, pair domain.CredentialPair) {
	if s == nil || s.backend == nil {
		return
	}
	if pair.Empty() {
		s.Clear(ctx)
		return
	}
	if err := s.backend.Save(ctx, s.key, pair); err != nil {
		s.logger.Warn("credential backend write failed", zap.Error(err))
	}
}

// Clear removes the stored pair.
func (s *Store) Clear(ctx context.Context) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("credential backend delete failed", zap.Error(err))
	}
}

// Swap replaces the stored pair with next only if the stored access token is
// still expectedAccess, and reports whether it did. A pair replaced or removed
// meanwhile by a login or logout is left alone.
func (s *Store) Swap(ctx context.Context, expectedAccess string, next domain.CredentialPair) bool {
	if s == nil || s.backend == nil || expectedAccess == "" {
		return false
	}
	if next.Empty() {
		next = domain.CredentialPair{}
	}
	swapped, err := s.backend.CompareAndSwap(ctx, s.key, expectedAccess, next)
	if err != nil {
		s.logger.Warn("credential backend swap failed", zap.Error(err))
		return false
	}
	return swapped
}

// ClearIf removes the stored pair only if its access token is still expectedAccess.
func (s *Store) ClearIf(ctx context.Context, expectedAccess string) bool {
	return s.Swap(ctx, expectedAccess, domain.CredentialPair{})
}
