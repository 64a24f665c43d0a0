package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// titleCache remembers conversation display names across chat switches so a
// recently visited conversation shows its name before history arrives.
type titleCache struct {
	c *gocache.Cache
}

func newTitleCache() *titleCache {
	return &titleCache{c: gocache.New(30*time.Minute, 10*time.Minute)}
}

func (t *titleCache) Set(chatID, name string) {
	if chatID == "" || name == "" {
		return
	}
	t.c.SetDefault(chatID, name)
}

func (t *titleCache) Get(chatID string) (string, bool) {
	v, ok := t.c.Get(chatID)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}
