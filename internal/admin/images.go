package admin

import (
	"context"
	"fmt"

	"ato_site/internal/models"
	"ato_site/internal/storage"
)

// AddCarouselImage uploads up and inserts a carousel row for it. If the insert
// fails the uploaded object is removed again.
func (c *Console) AddCarouselImage(ctx context.Context, up *Upload) error {
	const op = "uploading image"
	if up.empty() {
		return c.fail(KindUpload, op, ErrNoFile)
	}

	objectPath, publicURL, err := c.upload(ctx, storage.FolderCarousel, up)
	if err != nil {
		return c.fail(KindUpload, op, err)
	}
	if err := c.tables.InsertCarousel(ctx, publicURL); err != nil {
		c.compensate(ctx, objectPath)
		return c.fail(KindUpload, op, err)
	}

	c.cache.RefreshCarousel(ctx)
	c.log.WithField("path", objectPath).Info("Carousel image added")
	return nil
}

// DeleteCarouselImage removes the row whose URL equals url together with its
// object: the row delete commits only after the object is gone. An unknown URL
// is a no-op.
func (c *Console) DeleteCarouselImage(ctx context.Context, url string) error {
	objectPath, owned := c.ownedPath(storage.FolderCarousel, url)
	removeFile := func(ctx context.Context) error {
		if !owned {
			return nil
		}
		return c.objects.Remove(ctx, objectPath)
	}

	if err := c.tables.DeleteCarousel(ctx, url, removeFile); err != nil {
		return c.fail(KindDelete, "deleting image", err)
	}

	c.cache.RefreshCarousel(ctx)
	return nil
}

// ReplaceLeadershipImage makes up the only file in the leadership folder.
func (c *Console) ReplaceLeadershipImage(ctx context.Context, up *Upload) error {
	return c.ReplaceSiteImage(ctx, models.SlotLeadership, up)
}

// ReplaceRushImage makes up the only file in the rush folder.
func (c *Console) ReplaceRushImage(ctx context.Context, up *Upload) error {
	return c.ReplaceSiteImage(ctx, models.SlotRush, up)
}

// ReplaceSiteImage removes every file in the slot folder, then uploads up.
// A failed removal aborts before anything is uploaded.
func (c *Console) ReplaceSiteImage(ctx context.Context, slot models.Slot, up *Upload) error {
	folder, refresh, err := c.slot(slot)
	if err != nil {
		return c.fail(KindUpload, "uploading image", err)
	}
	op := fmt.Sprintf("uploading %s image", slot)
	if up.empty() {
		return c.fail(KindUpload, op, ErrNoFile)
	}

	existing, err := c.objects.List(ctx, folder, 100)
	if err != nil {
		return c.fail(KindDelete, fmt.Sprintf("deleting old %s image", slot), err)
	}
	if len(existing) > 0 {
		paths := make([]string, 0, len(existing))
		for _, o := range existing {
			paths = append(paths, folder+"/"+o.Name)
		}
		if err := c.objects.Remove(ctx, paths...); err != nil {
			return c.fail(KindDelete, fmt.Sprintf("deleting old %s image", slot), err)
		}
	}

	objectPath, _, err := c.upload(ctx, folder, up)
	if err != nil {
		// the old files are already gone
		refresh(ctx)
		return c.fail(KindUpload, op, err)
	}

	refresh(ctx)
	c.log.WithField("path", objectPath).Infof("%s image replaced", slot)
	return nil
}

func (c *Console) slot(slot models.Slot) (string, func(context.Context) bool, error) {
	switch slot {
	case models.SlotLeadership:
		return storage.FolderLeadership, c.cache.RefreshLeadership, nil
	case models.SlotRush:
		return storage.FolderRush, c.cache.RefreshRush, nil
	default:
		return "", nil, fmt.Errorf("unknown image slot %q", slot)
	}
}
