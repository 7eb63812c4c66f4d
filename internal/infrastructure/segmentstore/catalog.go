package segmentstore

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Catalog shares one Store per database file across sessions, so frame
// descriptions computed by one session are reused by the next.
type Catalog struct {
	opts Options

	mu     sync.Mutex
	stores map[string]*Store
}

func NewCatalog(opts Options) *Catalog {
	return &Catalog{
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

func (c *Catalog) Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("segmentstore.Catalog.Open: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if store, ok := c.stores[abs]; ok {
		return store, nil
	}

	video, err := LoadVideo(abs)
	if err != nil {
		return nil, err
	}
	store := New(video, c.opts)
	c.stores[abs] = store

	if c.opts.Logger != nil {
		c.opts.Logger.Info("Video loaded", "video_id", video.ID, "clips", len(video.Clips), "path", abs)
	}
	return store, nil
}

func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stores)
}
