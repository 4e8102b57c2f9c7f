package admin

import (
	"context"

	"ato_site/internal/models"
	"ato_site/internal/storage"
)

// DeleteNews deletes every selected post in one statement, clears the
// selection and refreshes the news list. Post images stay in the bucket.
func (c *Console) DeleteNews(ctx context.Context, sel *models.Selection) error {
	if sel == nil || sel.Len() == 0 {
		return nil
	}
	ids := sel.IDs()
	if err := c.tables.DeleteNews(ctx, ids); err != nil {
		return c.fail(KindDelete, "deleting selected news", err)
	}

	sel.Clear()
	c.cache.RefreshNews(ctx)
	c.log.WithField("ids", ids).Info("Selected news deleted")
	return nil
}

// CreateNews inserts post, uploading image first when given.
func (c *Console) CreateNews(ctx context.Context, post models.NewsPost, image *Upload) (int, error) {
	const op = "creating news"
	if err := post.Validate(); err != nil {
		return 0, c.fail(KindUpdate, op, err)
	}

	var objectPath string
	if !image.empty() {
		p, publicURL, err := c.upload(ctx, storage.FolderNews, image)
		if err != nil {
			return 0, c.fail(KindUpload, "uploading news image", err)
		}
		objectPath, post.ImageURL = p, publicURL
	}

	id, err := c.tables.CreateNews(ctx, post)
	if err != nil {
		if objectPath != "" {
			c.compensate(ctx, objectPath)
		}
		return 0, c.fail(KindUpdate, op, err)
	}

	c.cache.RefreshNews(ctx)
	return id, nil
}

// UpdateNews overwrites post. With a new image the upload replaces the old
// one, which is removed after the row is updated.
func (c *Console) UpdateNews(ctx context.Context, post models.NewsPost, image *Upload) error {
	const op = "updating news"
	if err := post.Validate(); err != nil {
		return c.fail(KindUpdate, op, err)
	}

	previous := post.ImageURL
	for _, p := range c.cache.News() {
		if p.ID == post.ID {
			previous = p.ImageURL
			break
		}
	}

	var objectPath string
	if !image.empty() {
		p, publicURL, err := c.upload(ctx, storage.FolderNews, image)
		if err != nil {
			return c.fail(KindUpload, "uploading news image", err)
		}
		objectPath, post.ImageURL = p, publicURL
	}

	if err := c.tables.UpdateNews(ctx, post); err != nil {
		if objectPath != "" {
			c.compensate(ctx, objectPath)
		}
		return c.fail(KindUpdate, op, err)
	}

	if previous != post.ImageURL {
		if oldPath, ok := c.ownedPath(storage.FolderNews, previous); ok {
			if err := c.objects.Remove(ctx, oldPath); err != nil {
				c.log.WithField("path", oldPath).Errorf("Error deleting old news image: %v", err)
			}
		}
	}

	c.cache.RefreshNews(ctx)
	return nil
}
