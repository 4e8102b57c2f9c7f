package admin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SaveInterestLink updates the recruitment interest form link and refreshes it.
// An empty link clears it; anything else must be an absolute http(s) URL.
func (c *Console) SaveInterestLink(ctx context.Context, link string) error {
	const op = "updating interest form link"
	link = strings.TrimSpace(link)
	if link != "" {
		u, err := url.ParseRequestURI(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return c.fail(KindUpdate, op, fmt.Errorf("invalid link %q", link))
		}
	}

	if err := c.tables.UpdateInterestLink(ctx, link); err != nil {
		return c.fail(KindUpdate, op, err)
	}

	c.cache.RefreshInterestLink(ctx)
	return nil
}
