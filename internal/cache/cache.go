package cache

import (
	"sync"

	"github.com/edanliahovetsky/bline-engine/internal/model"
)

// DocumentCache caches document rows by content hash to avoid a db read on
// every run start. Repeated runs of the same document are the common case.
type DocumentCache struct {
	m         sync.Mutex
	Documents map[string]model.Document
}

func NewDocumentCache() *DocumentCache {
	return &DocumentCache{
		m:         sync.Mutex{},
		Documents: make(map[string]model.Document),
	}
}

func (c *DocumentCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Documents = make(map[string]model.Document)
}

func (c *DocumentCache) Get(hash string) (model.Document, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if d, ok := c.Documents[hash]; ok {
		return d, true
	}
	return model.Document{}, false
}

func (c *DocumentCache) Add(d model.Document) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Documents[d.Hash] = d
}
