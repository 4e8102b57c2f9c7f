package admin

import (
	"context"
	"fmt"

	"ato_site/internal/logger"
	"ato_site/internal/models"
	"ato_site/internal/storage"
)

// BeginRosterEdit opens an edit buffer for session holding a sorted copy of
// the cached roster. Reopening replaces any previous buffer.
func (c *Console) BeginRosterEdit(session string) []models.ExecMember {
	members := c.cache.Roster()
	models.SortRoster(members)
	c.drafts.put(session, members)
	return members
}

// RosterDraft returns the open edit buffer of session.
func (c *Console) RosterDraft(session string) ([]models.ExecMember, bool) {
	return c.drafts.get(session)
}

// CancelRosterEdit discards the edit buffer of session.
func (c *Console) CancelRosterEdit(session string) {
	c.drafts.drop(session)
}

// EditMember changes one field of one buffered member. Nothing is persisted.
func (c *Console) EditMember(session string, index int, field, value string) error {
	return c.drafts.update(session, func(members []models.ExecMember) error {
		if index < 0 || index >= len(members) {
			return fmt.Errorf("%w: %d", ErrIndex, index)
		}
		return members[index].Set(field, value)
	})
}

// SaveRoster persists every buffered member keyed by position as one atomic
// batch, then closes the buffer and refreshes the roster. On failure the
// buffer stays open so the operator can retry.
func (c *Console) SaveRoster(ctx context.Context, session string) error {
	members, ok := c.drafts.get(session)
	if !ok {
		return c.fail(KindUpdate, "updating executive board", ErrNotEditing)
	}
	if err := c.tables.SaveExec(ctx, members); err != nil {
		return c.fail(KindUpdate, "updating executive board", err)
	}

	c.drafts.drop(session)
	c.cache.RefreshRoster(ctx)
	c.log.WithField("members", len(members)).Info("Executive board updated")
	return nil
}

// ReplaceMemberImage uploads a new picture for buffered member index and
// stores its URL in the buffer; the row changes on the next SaveRoster. The
// previous picture is then removed on a best-effort basis.
func (c *Console) ReplaceMemberImage(ctx context.Context, session string, index int, up *Upload) (string, error) {
	const op = "uploading executive board image"
	if up.empty() {
		return "", c.fail(KindUpload, op, ErrNoFile)
	}

	members, ok := c.drafts.get(session)
	if !ok {
		return "", c.fail(KindUpload, op, ErrNotEditing)
	}
	if index < 0 || index >= len(members) {
		return "", c.fail(KindUpload, op, fmt.Errorf("%w: %d", ErrIndex, index))
	}

	objectPath, publicURL, err := c.upload(ctx, storage.FolderExec, up)
	if err != nil {
		return "", c.fail(KindUpload, op, err)
	}

	var old string
	err = c.drafts.update(session, func(members []models.ExecMember) error {
		if index >= len(members) {
			return fmt.Errorf("%w: %d", ErrIndex, index)
		}
		old = members[index].PictureURL
		members[index].PictureURL = publicURL
		return nil
	})
	if err != nil {
		c.compensate(ctx, objectPath)
		return "", c.fail(KindUpload, op, err)
	}

	if oldPath, ok := c.ownedPath(storage.FolderExec, old); ok && oldPath != objectPath {
		if err := c.objects.Remove(ctx, oldPath); err != nil {
			c.log.WithFields(logger.Fields{"path": oldPath, "position": members[index].Position}).
				Errorf("Error deleting old image: %v", err)
		}
	}
	return publicURL, nil
}
