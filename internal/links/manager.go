package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shortcut-service/internal/metrics"
	"shortcut-service/internal/shortener"
)

// Manager owns the link lifecycle: create, update target, retire.
//
// Callers pass their identity explicitly; only the owner may read, update or
// retire a record. Visits are never written here.
type Manager struct {
	store     Store
	generator *shortener.Generator
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewManager returns a Manager that allocates codes with generator and
// persists them in store.
func NewManager(store Store, generator *shortener.Generator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		generator: generator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Create validates target, allocates a fresh code and stores an active link
// owned by owner.
func (m *Manager) Create(ctx context.Context, owner, target string) (*Link, error) {
	target, err := ValidateTarget(target)
	if err != nil {
		metrics.LinksCreated.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	if owner == "" {
		return nil, errors.New("create link: empty owner")
	}

	var created *Link
	code, err := m.generator.Allocate(ctx, func(ctx context.Context, code string) (bool, error) {
		now := m.now()
		link := &Link{
			ID:        m.newID(),
			Code:      code,
			Target:    target,
			Owner:     owner,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.Insert(ctx, link); err != nil {
			if errors.Is(err, ErrDuplicateCode) {
				metrics.CodeCollisions.Inc()
				return false, nil
			}
			return false, err
		}
		created = link
		return true, nil
	})
	if err != nil {
		if errors.Is(err, shortener.ErrGenerationExhausted) {
			metrics.LinksCreated.WithLabelValues(metrics.OutcomeExhausted).Inc()
			m.logger.Error("short code generation exhausted", "owner", owner, "attempts", m.generator.MaxAttempts())
			return nil, err
		}
		metrics.LinksCreated.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("create link: %w", err)
	}

	metrics.LinksCreated.WithLabelValues(metrics.OutcomeOK).Inc()
	m.logger.Info("link created", "id", created.ID, "code", code, "owner", owner)
	return created, nil
}

// Get returns the record with id if caller owns it.
func (m *Manager) Get(ctx context.Context, caller, id string) (*Link, error) {
	link, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.Owner != caller {
		return nil, ErrForbidden
	}
	return link, nil
}

// Update replaces the target of an active link owned by caller. The code is
// never touched.
func (m *Manager) Update(ctx context.Context, caller, id, target string) (*Link, error) {
	target, err := ValidateTarget(target)
	if err != nil {
		return nil, err
	}
	if _, err := m.Get(ctx, caller, id); err != nil {
		return nil, err
	}

	link, err := m.store.UpdateTarget(ctx, id, target)
	if err != nil {
		return nil, err
	}
	m.logger.Info("link updated", "id", id, "code", link.Code)
	return link, nil
}

// Retire soft-deletes a link owned by caller. Retiring twice succeeds.
func (m *Manager) Retire(ctx context.Context, caller, id string) (*Link, error) {
	if _, err := m.Get(ctx, caller, id); err != nil {
		return nil, err
	}

	link, err := m.store.Retire(ctx, id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("link retired", "id", id, "code", link.Code)
	return link, nil
}

// ListActive returns the active links and their total count.
func (m *Manager) ListActive(ctx context.Context, page Page) ([]*Link, int64, error) {
	if page.Limit < 0 {
		page.Limit = 0
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return m.store.ListActive(ctx, page)
}
