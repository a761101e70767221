package screens

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"reboot-miniapp/internal/models"
)

const GalleryPageSize = 12

type GalleryAPI interface {
	ListPublicMemories(ctx context.Context, page, limit int) (*models.MemoryPage, error)
}

type Gallery struct {
	*lifetime
	api GalleryAPI
	log *zap.SugaredLogger

	mu      sync.Mutex
	items   []models.Memory
	page    int
	hasMore bool
	loading bool
	loaded  bool
}

func NewGallery(parent context.Context, client GalleryAPI, log *zap.SugaredLogger) *Gallery {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gallery{lifetime: newLifetime(parent), api: client, log: log}
}

// Load replaces the list with the first page.
func (g *Gallery) Load(ctx context.Context) (*Notification, error) {
	return g.fetch(ctx, 1, false)
}

// LoadMore appends the next page. It does nothing when there is no next page
// or a fetch is already running; the second value reports whether it fetched.
func (g *Gallery) LoadMore(ctx context.Context) (*Notification, bool, error) {
	g.mu.Lock()
	if g.loading || !g.hasMore {
		g.mu.Unlock()
		return nil, false, nil
	}
	next := g.page + 1
	g.mu.Unlock()

	n, err := g.fetch(ctx, next, true)
	return n, err == nil, err
}

func (g *Gallery) fetch(ctx context.Context, page int, appendItems bool) (*Notification, error) {
	g.mu.Lock()
	if g.loading {
		g.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	g.loading = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.loading = false
		g.mu.Unlock()
	}()

	ctx, cancel := g.bind(ctx)
	defer cancel()
	res, err := g.api.ListPublicMemories(ctx, page, GalleryPageSize)
	if !g.Mounted() {
		return nil, ErrUnmounted
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.loaded = true
	if err != nil {
		g.log.Warnw("gallery fetch failed", "page", page, "err", err)
		return failure("Failed to load gallery", ""), nil
	}
	if appendItems {
		g.items = append(g.items, res.Data...)
	} else {
		g.items = append([]models.Memory(nil), res.Data...)
	}
	g.page = page
	g.hasMore = res.Pagination.HasMore()
	return nil, nil
}

func (g *Gallery) Items() []models.Memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Memory, len(g.items))
	copy(out, g.items)
	return out
}

func (g *Gallery) Page() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.page
}

func (g *Gallery) HasMore() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasMore
}

func (g *Gallery) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

func (g *Gallery) LoadMoreLabel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading {
		return "Loading..."
	}
	return "Load More"
}
