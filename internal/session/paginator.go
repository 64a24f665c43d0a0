package session

import (
	"context"

	"go.uber.org/zap"
)

// TopThreshold is the scroll offset (display units from the top) under
// which the next history page is requested.
const TopThreshold = 20

// LoadInitial fetches the first history page, replacing the transcript and
// asking the view to re-anchor at the bottom.
func (c *Controller) LoadInitial(ctx context.Context) error {
	return c.loadPage(ctx, 1)
}

// LoadMore fetches the next older page and prepends it. The caller keeps
// the visual anchor stable; the engine only guarantees the merge order.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	next := c.state.Page + 1
	c.mu.Unlock()
	return c.loadPage(ctx, next)
}

// HandleScroll applies the pagination trigger policy: within TopThreshold
// of the top, more pages available, nothing in flight. Reports whether a
// fetch was started.
func (c *Controller) HandleScroll(ctx context.Context, offsetFromTop int) bool {
	c.mu.Lock()
	trigger := offsetFromTop <= TopThreshold &&
		c.state.HasMore && !c.loading && c.state.ChatID != ""
	c.mu.Unlock()

	if !trigger {
		return false
	}

	go func() {
		if err := c.LoadMore(ctx); err != nil {
			c.log.Debug("scroll-triggered page load failed", zap.Error(err))
		}
	}()
	return true
}

// loadPage fetches history page n. It fails fast when no conversation is
// active or a fetch is already in flight; the cursor only advances on
// success, and a completion that resolves after the session moved on is
// discarded.
func (c *Controller) loadPage(ctx context.Context, page int) error {
	c.mu.Lock()
	if c.state.ChatID == "" {
		c.mu.Unlock()
		return ErrNoChat
	}
	if c.loading {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	if page == 1 {
		c.state.LoadingInitial = true
	} else {
		c.state.LoadingMore = true
	}
	chatID := c.state.ChatID
	epoch := c.epoch
	c.mu.Unlock()
	c.publish(Update{})

	res, err := c.api.History(ctx, chatID, page, c.pageSize, c.visitorID())

	c.mu.Lock()
	if c.epoch != epoch {
		// The session was reset while the fetch was in flight; its flags
		// belong to the new epoch now.
		c.mu.Unlock()
		c.log.Debug("discarding stale history page", zap.String("chatId", chatID), zap.Int("page", page))
		return nil
	}
	c.loading = false
	c.state.LoadingInitial = false
	c.state.LoadingMore = false

	if err != nil {
		c.mu.Unlock()
		c.notify.Error(historyErrorToast)
		c.publish(Update{})
		return err
	}

	items := reverseItems(res.Items)
	c.state.HasMore = res.Pagination.HasMore
	if res.Chat.Name != "" {
		c.state.Name = res.Chat.Name
		c.titles.Set(chatID, res.Chat.Name)
	}

	scroll := false
	if page == 1 {
		c.state.Items = items
		scroll = true
	} else {
		c.state.Items = prependOlder(c.state.Items, items)
	}
	c.state.Page = page
	c.mu.Unlock()

	c.publish(Update{ScrollToBottom: scroll})
	return nil
}
