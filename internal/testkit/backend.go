// Package testkit provides an in-memory stand-in for the Supabase tables and
// storage bucket, for tests of the cache, admin console and HTTP server.
package testkit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"ato_site/internal/db"
	"ato_site/internal/models"
	"ato_site/internal/storage"
)

// PublicBase prefixes every public URL handed out by Backend.
const PublicBase = "https://cdn.test/ImageStorage/"

type object struct {
	data      []byte
	createdAt time.Time
}

// Backend is a goroutine-safe fake of the database and object store.
// Set Fail[op] to make the named operation return that error.
type Backend struct {
	mu       sync.Mutex
	carousel []string
	exec     []models.ExecMember
	news     []models.NewsPost
	nextNews int
	link     models.InterestFormLink
	objects  map[string]object
	clock    time.Time

	Fail  map[string]error
	Calls []string
}

func NewBackend() *Backend {
	return &Backend{
		objects:  map[string]object{},
		nextNews: 1,
		link:     models.InterestFormLink{ID: models.InterestFormLinkID},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Fail:     map[string]error{},
	}
}

// call records op and returns its injected failure, if any. mu must be held.
func (b *Backend) call(op string) error {
	b.Calls = append(b.Calls, op)
	return b.Fail[op]
}

// Seeding helpers.

func (b *Backend) SeedCarousel(urls ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carousel = append(b.carousel, urls...)
}

func (b *Backend) SeedExec(members ...models.ExecMember) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exec = append(b.exec, members...)
}

func (b *Backend) SeedNews(posts ...models.NewsPost) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range posts {
		if p.ID == 0 {
			p.ID = b.nextNews
		}
		if p.ID >= b.nextNews {
			b.nextNews = p.ID + 1
		}
		b.news = append(b.news, p)
	}
}

func (b *Backend) SeedLink(link string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.link.Link = link
}

func (b *Backend) SeedObject(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(path, data)
}

func (b *Backend) putLocked(path string, data []byte) {
	b.clock = b.clock.Add(time.Second)
	b.objects[path] = object{data: data, createdAt: b.clock}
}

// Inspection helpers.

func (b *Backend) CarouselRows() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.carousel)
}

func (b *Backend) ExecRows() []models.ExecMember {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.exec)
}

func (b *Backend) NewsRows() []models.NewsPost {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.news)
}

func (b *Backend) Link() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.link.Link
}

// ObjectPaths returns stored object paths under folder, sorted.
func (b *Backend) ObjectPaths(folder string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for p := range b.objects {
		if strings.HasPrefix(p, folder+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = nil
}

// Tables.

func (b *Backend) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.call("ping")
}

func (b *Backend) ListCarousel(ctx context.Context) ([]models.CarouselImage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("list_carousel"); err != nil {
		return nil, err
	}
	out := make([]models.CarouselImage, 0, len(b.carousel))
	for _, u := range b.carousel {
		out = append(out, models.CarouselImage{URL: u})
	}
	return out, nil
}

func (b *Backend) InsertCarousel(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("insert_carousel"); err != nil {
		return err
	}
	b.carousel = append(b.carousel, url)
	return nil
}

// DeleteCarousel mirrors the transactional contract of db.Database.
func (b *Backend) DeleteCarousel(ctx context.Context, url string, removeFile func(context.Context) error) error {
	b.mu.Lock()
	if err := b.call("delete_carousel"); err != nil {
		b.mu.Unlock()
		return err
	}
	idx := slices.Index(b.carousel, url)
	b.mu.Unlock()

	if idx < 0 {
		return nil
	}
	if removeFile != nil {
		if err := removeFile(ctx); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.carousel = slices.DeleteFunc(b.carousel, func(u string) bool { return u == url })
	return nil
}

func (b *Backend) ListExec(ctx context.Context) ([]models.ExecMember, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("list_exec"); err != nil {
		return nil, err
	}
	out := slices.Clone(b.exec)
	for _, m := range out {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	models.SortRoster(out)
	return out, nil
}

// SaveExec applies every update or none, like the transactional database.
func (b *Backend) SaveExec(ctx context.Context, members []models.ExecMember) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("save_exec"); err != nil {
		return err
	}

	next := slices.Clone(b.exec)
	for i, m := range members {
		if err := m.Validate(); err != nil {
			return &db.BatchError{Position: m.Position, Index: i, Err: err}
		}
		idx := slices.IndexFunc(next, func(row models.ExecMember) bool { return row.Position == m.Position })
		if idx < 0 {
			return &db.BatchError{Position: m.Position, Index: i, Err: db.ErrNoSuchMember}
		}
		row := next[idx]
		row.Name, row.Grade, row.Major, row.Email, row.PictureURL = m.Name, m.Grade, m.Major, m.Email, m.PictureURL
		next[idx] = row
	}
	b.exec = next
	return nil
}

func (b *Backend) ListNews(ctx context.Context) ([]models.NewsPost, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("list_news"); err != nil {
		return nil, err
	}
	out := slices.Clone(b.news)
	models.SortNews(out)
	return out, nil
}

func (b *Backend) CreateNews(ctx context.Context, p models.NewsPost) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("create_news"); err != nil {
		return 0, err
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	p.ID = b.nextNews
	b.nextNews++
	b.news = append(b.news, p)
	return p.ID, nil
}

func (b *Backend) UpdateNews(ctx context.Context, p models.NewsPost) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("update_news"); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	idx := slices.IndexFunc(b.news, func(n models.NewsPost) bool { return n.ID == p.ID })
	if idx < 0 {
		return fmt.Errorf("update news %d: %w", p.ID, models.ErrInvalidRecord)
	}
	b.news[idx] = p
	return nil
}

func (b *Backend) DeleteNews(ctx context.Context, ids []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("delete_news"); err != nil {
		return err
	}
	b.news = slices.DeleteFunc(b.news, func(n models.NewsPost) bool { return slices.Contains(ids, n.ID) })
	return nil
}

func (b *Backend) GetInterestLink(ctx context.Context) (models.InterestFormLink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("get_interest_link"); err != nil {
		return models.InterestFormLink{}, err
	}
	return b.link, nil
}

func (b *Backend) UpdateInterestLink(ctx context.Context, link string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("update_interest_link"); err != nil {
		return err
	}
	b.link.Link = link
	return nil
}

// Storage.

func (b *Backend) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("upload"); err != nil {
		return err
	}
	if _, ok := b.objects[path]; ok {
		return &storage.APIError{Op: "upload " + path, Message: "The resource already exists"}
	}
	b.putLocked(path, data)
	return nil
}

func (b *Backend) Remove(ctx context.Context, paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("remove"); err != nil {
		return err
	}
	for _, p := range paths {
		delete(b.objects, p)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, folder string, limit int) ([]storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call("list"); err != nil {
		return nil, err
	}
	var out []storage.Object
	for p, o := range b.objects {
		if rest, ok := strings.CutPrefix(p, folder+"/"); ok && !strings.Contains(rest, "/") {
			out = append(out, storage.Object{Name: rest, CreatedAt: o.createdAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *Backend) PublicURL(path string) string {
	return PublicBase + path
}

// Bytes returns the content stored at path.
func (b *Backend) Bytes(path string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[path]
	return bytes.Clone(o.data), ok
}
