package links_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortcut-service/internal/db"
	"shortcut-service/internal/links"
	"shortcut-service/internal/shortener"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupStore(t *testing.T) links.Store {
	conn, err := db.InitDB("sqlite3", ":memory:")
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() {
		assert.NoError(t, conn.Close())
	})
	return db.NewStore(conn)
}

func setupManager(t *testing.T, opts ...shortener.Option) (*links.Manager, *links.Resolver, links.Store) {
	store := setupStore(t)
	gen := shortener.NewGenerator(opts...)
	resolver, err := links.NewResolver(store, gen, 0, discard)
	require.NoError(t, err)
	return links.NewManager(store, gen, discard), resolver, store
}

func TestCreate(t *testing.T) {
	manager, _, store := setupManager(t)
	ctx := context.Background()

	link, err := manager.Create(ctx, "alice", "  https://example.com/page?q=1  ")
	require.NoError(t, err)

	assert.NotEmpty(t, link.ID)
	assert.Len(t, link.Code, shortener.DefaultLength)
	assert.Equal(t, "https://example.com/page?q=1", link.Target)
	assert.Equal(t, "alice", link.Owner)
	assert.Equal(t, links.StatusActive, link.Status)
	assert.Equal(t, int64(0), link.Visits)
	assert.True(t, link.CreatedAt.Equal(link.UpdatedAt))

	stored, err := store.FindByCode(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, link.ID, stored.ID)
}

func TestCreateValidation(t *testing.T) {
	manager, _, _ := setupManager(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		target string
	}{
		{name: "empty", target: ""},
		{name: "whitespace only", target: "   "},
		{name: "no scheme", target: "example.com"},
		{name: "relative path", target: "/just/a/path"},
		{name: "ftp scheme", target: "ftp://example.com/file"},
		{name: "javascript scheme", target: "javascript:alert(1)"},
		{name: "not a url", target: "not a url"},
		{name: "too long", target: "https://example.com/" + strings.Repeat("a", 2100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := manager.Create(ctx, "alice", tt.target)
			assert.Nil(t, link)

			var verr *links.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Equal(t, links.TargetField, verr.Field)
			assert.NotEmpty(t, verr.Message)
		})
	}

	all, total, err := manager.ListActive(ctx, links.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, all)
}

func TestCreateRequiresOwner(t *testing.T) {
	manager, _, _ := setupManager(t)

	_, err := manager.Create(context.Background(), "", "https://example.com")
	assert.Error(t, err)
}

func TestCreateConcurrentCodesAreUnique(t *testing.T) {
	manager, _, _ := setupManager(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	codes := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := manager.Create(ctx, "alice", "https://example.com")
			if assert.NoError(t, err) {
				codes <- link.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true
	}
	assert.Len(t, seen, workers)
}

func TestCreateRetriesCollisions(t *testing.T) {
	var collisions []int
	manager, _, _ := setupManager(t,
		shortener.WithAlphabet("ab"),
		shortener.WithLength(2),
		shortener.WithMaxAttempts(200),
		shortener.WithCollisionHook(func(code string, attempt int) {
			collisions = append(collisions, attempt)
		}),
	)
	ctx := context.Background()

	// Four codes exist in this space; every one of them must be reachable.
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		link, err := manager.Create(ctx, "alice", "https://example.com")
		require.NoError(t, err)
		assert.False(t, seen[link.Code])
		seen[link.Code] = true
	}
	assert.Len(t, seen, 4)

	collisions = nil
	_, err := manager.Create(ctx, "alice", "https://example.com")
	assert.ErrorIs(t, err, shortener.ErrGenerationExhausted)
	require.Len(t, collisions, 200)
	assert.Equal(t, 200, collisions[len(collisions)-1])
}

func TestCreateExhausted(t *testing.T) {
	attempts := 0
	manager, _, _ := setupManager(t,
		shortener.WithAlphabet("a"),
		shortener.WithLength(6),
		shortener.WithMaxAttempts(3),
		shortener.WithCollisionHook(func(string, int) { attempts++ }),
	)
	ctx := context.Background()

	first, err := manager.Create(ctx, "alice", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa", first.Code)

	second, err := manager.Create(ctx, "alice", "https://example.org")
	assert.ErrorIs(t, err, shortener.ErrGenerationExhausted)
	assert.Nil(t, second)
	assert.Equal(t, 3, attempts)

	// The failed attempt left nothing behind.
	_, total, err := manager.ListActive(ctx, links.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestGet(t *testing.T) {
	manager, _, _ := setupManager(t)
	ctx := context.Background()

	link, err := manager.Create(ctx, "alice", "https://example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  string
		id      string
		wantErr error
	}{
		{name: "owner", caller: "alice", id: link.ID},
		{name: "other caller", caller: "bob", id: link.ID, wantErr: links.ErrForbidden},
		{name: "missing", caller: "alice", id: "missing", wantErr: links.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := manager.Get(ctx, tt.caller, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, link.Code, got.Code)
		})
	}
}

func TestUpdate(t *testing.T) {
	manager, resolver, _ := setupManager(t)
	ctx := context.Background()

	link, err := manager.Create(ctx, "alice", "https://example.com/old")
	require.NoError(t, err)

	updated, err := manager.Update(ctx, "alice", link.ID, "https://example.com/new")
	require.NoError(t, err)
	assert.Equal(t, link.Code, updated.Code, "code never changes")
	assert.Equal(t, "https://example.com/new", updated.Target)
	assert.False(t, updated.UpdatedAt.Before(link.UpdatedAt))

	res, err := resolver.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", res.Target)
}

func TestUpdateErrors(t *testing.T) {
	manager, _, _ := setupManager(t)
	ctx := context.Background()

	active, err := manager.Create(ctx, "alice", "https://example.com/a")
	require.NoError(t, err)
	retired, err := manager.Create(ctx, "alice", "https://example.com/r")
	require.NoError(t, err)
	_, err = manager.Retire(ctx, "alice", retired.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  string
		id      string
		target  string
		wantErr error
	}{
		{name: "retired record", caller: "alice", id: retired.ID, target: "https://example.com/x", wantErr: links.ErrInvalidState},
		{name: "not the owner", caller: "bob", id: active.ID, target: "https://example.com/x", wantErr: links.ErrForbidden},
		{name: "missing record", caller: "alice", id: "missing", target: "https://example.com/x", wantErr: links.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Update(ctx, tt.caller, tt.id, tt.target)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("invalid target", func(t *testing.T) {
		_, err := manager.Update(ctx, "alice", active.ID, "mailto:someone@example.com")
		var verr *links.ValidationError
		assert.True(t, errors.As(err, &verr))

		unchanged, err := manager.Get(ctx, "alice", active.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", unchanged.Target)
	})
}

func TestRetire(t *testing.T) {
	manager, resolver, _ := setupManager(t)
	ctx := context.Background()

	link, err := manager.Create(ctx, "alice", "https://example.com")
	require.NoError(t, err)

	_, err = manager.Retire(ctx, "bob", link.ID)
	assert.ErrorIs(t, err, links.ErrForbidden)

	first, err := manager.Retire(ctx, "alice", link.ID)
	require.NoError(t, err)
	assert.Equal(t, links.StatusRetired, first.Status)
	assert.Equal(t, link.Code, first.Code)

	second, err := manager.Retire(ctx, "alice", link.ID)
	require.NoError(t, err, "retiring twice succeeds")
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))

	_, err = resolver.Resolve(ctx, link.Code)
	assert.ErrorIs(t, err, links.ErrNotFound)

	_, err = manager.Retire(ctx, "alice", "missing")
	assert.ErrorIs(t, err, links.ErrNotFound)
}

func TestListActive(t *testing.T) {
	manager, _, _ := setupManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		link, err := manager.Create(ctx, "alice", "https://example.com")
		require.NoError(t, err)
		ids = append(ids, link.ID)
	}
	_, err := manager.Retire(ctx, "alice", ids[1])
	require.NoError(t, err)

	all, total, err := manager.ListActive(ctx, links.Page{Limit: -5, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)
	for _, link := range all {
		assert.NotEqual(t, ids[1], link.ID)
	}
}
