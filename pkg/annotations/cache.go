// roles/pkg/annotations/cache.go

package annotations

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores raw response bodies keyed by URL. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(url string) ([]byte, bool)
	Add(url string, body []byte) bool
}

// NewLRUCache returns a bounded cache holding at most size responses.
func NewLRUCache(size int) (*lru.Cache[string, []byte], error) {
	return lru.New[string, []byte](size)
}

type noCache struct{}

func (noCache) Get(string) ([]byte, bool) { return nil, false }
func (noCache) Add(string, []byte) bool   { return false }
