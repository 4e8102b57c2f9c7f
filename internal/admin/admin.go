// Package admin implements the content-editing workflows of the admin console.
// Every workflow mutates the remote tables and bucket, then refreshes the
// shared cache; on failure it returns a *WorkflowError naming what went wrong.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ato_site/internal/logger"
	"ato_site/internal/models"
	"ato_site/internal/storage"
)

// Tables is the write side of the database gateway.
type Tables interface {
	InsertCarousel(ctx context.Context, url string) error
	DeleteCarousel(ctx context.Context, url string, removeFile func(context.Context) error) error
	SaveExec(ctx context.Context, members []models.ExecMember) error
	CreateNews(ctx context.Context, p models.NewsPost) (int, error)
	UpdateNews(ctx context.Context, p models.NewsPost) error
	DeleteNews(ctx context.Context, ids []int) error
	UpdateInterestLink(ctx context.Context, link string) error
}

// Objects is the site bucket.
type Objects interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader) error
	Remove(ctx context.Context, paths ...string) error
	List(ctx context.Context, folder string, limit int) ([]storage.Object, error)
	PublicURL(objectPath string) string
}

// Cache is the shared data cache the console reads from and refreshes.
type Cache interface {
	Roster() []models.ExecMember
	News() []models.NewsPost
	Load(ctx context.Context) int
	RefreshCarousel(ctx context.Context) bool
	RefreshRoster(ctx context.Context) bool
	RefreshNews(ctx context.Context) bool
	RefreshLeadership(ctx context.Context) bool
	RefreshRush(ctx context.Context) bool
	RefreshInterestLink(ctx context.Context) bool
}

// Kind classifies a failed workflow step for the operator notification.
type Kind string

const (
	KindUpload Kind = "upload"
	KindDelete Kind = "delete"
	KindUpdate Kind = "update"
)

// WorkflowError is returned by every console workflow.
type WorkflowError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// Notice is the operator-facing message, e.g. "Error uploading image".
func (e *WorkflowError) Notice() string {
	return "Error " + e.Op
}

var (
	// ErrNotEditing is returned by draft operations when no roster edit is open.
	ErrNotEditing = errors.New("roster is not in edit mode")
	// ErrNoFile is returned when an upload workflow gets no file.
	ErrNoFile = errors.New("no file selected")
	// ErrIndex is returned for a draft row index out of range.
	ErrIndex = errors.New("roster index out of range")
)

// Upload is one file picked in an admin form.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

func (u *Upload) empty() bool {
	return u == nil || u.Body == nil || u.Name == ""
}

// Option configures a Console.
type Option func(*Console)

// WithClock replaces time.Now for upload name prefixes.
func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// Console runs admin workflows. Concurrent workflows are not coordinated:
// the last write to a row wins.
type Console struct {
	tables  Tables
	objects Objects
	cache   Cache
	drafts  *drafts
	now     func() time.Time
	log     *logger.Entry
}

func NewConsole(tables Tables, objects Objects, cache Cache, opts ...Option) *Console {
	c := &Console{
		tables:  tables,
		objects: objects,
		cache:   cache,
		drafts:  newDrafts(),
		now:     time.Now,
		log:     logger.Service("admin"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open refreshes every collection; called when an authenticated admin lands
// on the console.
func (c *Console) Open(ctx context.Context) {
	if failed := c.cache.Load(ctx); failed > 0 {
		c.log.Warnf("Console opened with %d collections not refreshed", failed)
	}
}

// upload stores up under folder with a unique name and returns its path and public URL.
func (c *Console) upload(ctx context.Context, folder string, up *Upload) (string, string, error) {
	objectPath := folder + "/" + storage.UniqueName(c.now(), up.Name)
	if err := c.objects.Upload(ctx, objectPath, up.ContentType, up.Body); err != nil {
		return "", "", err
	}
	return objectPath, c.objects.PublicURL(objectPath), nil
}

// ownedPath maps a public URL back to its object path when it points into
// folder of this bucket.
func (c *Console) ownedPath(folder, publicURL string) (string, bool) {
	if publicURL == "" || !strings.HasPrefix(publicURL, c.objects.PublicURL(folder+"/")) {
		return "", false
	}
	return storage.ObjectPath(folder, publicURL), true
}

// compensate removes an object uploaded by a workflow that then failed.
func (c *Console) compensate(ctx context.Context, objectPath string) {
	if err := c.objects.Remove(ctx, objectPath); err != nil {
		c.log.WithField("path", objectPath).Errorf("Failed to remove orphaned upload: %v", err)
	}
}

func (c *Console) fail(kind Kind, op string, err error) error {
	c.log.WithField("kind", string(kind)).Errorf("Error %s: %v", op, err)
	return &WorkflowError{Kind: kind, Op: op, Err: err}
}
