// Package cache keeps the last fetched snapshot of every site collection so
// pages and the admin console share one copy instead of querying per view.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"ato_site/internal/logger"
	"ato_site/internal/metrics"
	"ato_site/internal/models"
	"ato_site/internal/storage"

	"golang.org/x/sync/errgroup"
)

// ErrAmbiguousSingleton means a singleton image folder holds more than one file.
var ErrAmbiguousSingleton = errors.New("singleton image folder holds more than one file")

// Collection names, used in logs and metrics.
const (
	Carousel     = "carousel"
	Roster       = "roster"
	News         = "news"
	Leadership   = "leadership_image"
	Rush         = "rush_image"
	InterestLink = "interest_link"
)

// Tables is the part of the database gateway the cache reads from.
type Tables interface {
	ListCarousel(ctx context.Context) ([]models.CarouselImage, error)
	ListExec(ctx context.Context) ([]models.ExecMember, error)
	ListNews(ctx context.Context) ([]models.NewsPost, error)
	GetInterestLink(ctx context.Context) (models.InterestFormLink, error)
}

// Objects resolves singleton images from object storage.
type Objects interface {
	List(ctx context.Context, folder string, limit int) ([]storage.Object, error)
	PublicURL(objectPath string) string
}

// Snapshot is a copy of everything the store holds.
type Snapshot struct {
	Carousel     []models.CarouselImage
	Roster       []models.ExecMember
	News         []models.NewsPost
	Leadership   *models.SiteImage
	Rush         *models.SiteImage
	InterestLink models.InterestFormLink
	Loading      bool
}

// Store is the shared data cache. The zero value is not usable; use New.
type Store struct {
	tables  Tables
	objects Objects
	log     *logger.Entry
	now     func() time.Time

	mu           sync.RWMutex
	carousel     []models.CarouselImage
	roster       []models.ExecMember
	news         []models.NewsPost
	leadership   *models.SiteImage
	rush         *models.SiteImage
	interestLink models.InterestFormLink
	loading      bool
}

// New returns an empty store. Loading reports true until the first Load ends.
func New(tables Tables, objects Objects) *Store {
	return &Store{
		tables:   tables,
		objects:  objects,
		log:      logger.Service("cache"),
		now:      time.Now,
		carousel: []models.CarouselImage{},
		roster:   []models.ExecMember{},
		news:     []models.NewsPost{},
		loading:  true,
	}
}

// Load refreshes all six collections concurrently. Failures are logged by the
// individual refreshes; Load reports how many collections failed.
func (s *Store) Load(ctx context.Context) int {
	refreshes := []func(context.Context) bool{
		s.RefreshCarousel,
		s.RefreshRoster,
		s.RefreshNews,
		s.RefreshLeadership,
		s.RefreshRush,
		s.RefreshInterestLink,
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	for _, refresh := range refreshes {
		g.Go(func() error {
			if !refresh(ctx) {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	return failed
}

// RefreshCarousel refetches carousel images, dropping empty URLs.
func (s *Store) RefreshCarousel(ctx context.Context) bool {
	images, err := s.tables.ListCarousel(ctx)
	if err != nil {
		return s.failed(Carousel, err)
	}
	images = slices.DeleteFunc(images, func(img models.CarouselImage) bool { return img.URL == "" })

	s.mu.Lock()
	s.carousel = images
	s.mu.Unlock()
	return s.succeeded(Carousel, len(images))
}

// RefreshRoster refetches the executive board sorted by id.
func (s *Store) RefreshRoster(ctx context.Context) bool {
	members, err := s.tables.ListExec(ctx)
	if err != nil {
		return s.failed(Roster, err)
	}
	models.SortRoster(members)

	s.mu.Lock()
	s.roster = members
	s.mu.Unlock()
	return s.succeeded(Roster, len(members))
}

// RefreshNews refetches news posts, newest first.
func (s *Store) RefreshNews(ctx context.Context) bool {
	posts, err := s.tables.ListNews(ctx)
	if err != nil {
		return s.failed(News, err)
	}
	models.SortNews(posts)

	s.mu.Lock()
	s.news = posts
	s.mu.Unlock()
	return s.succeeded(News, len(posts))
}

// RefreshInterestLink refetches the interest form link.
func (s *Store) RefreshInterestLink(ctx context.Context) bool {
	link, err := s.tables.GetInterestLink(ctx)
	if err != nil {
		return s.failed(InterestLink, err)
	}

	s.mu.Lock()
	s.interestLink = link
	s.mu.Unlock()
	return s.succeeded(InterestLink, 1)
}

// RefreshLeadership re-resolves the leadership image.
func (s *Store) RefreshLeadership(ctx context.Context) bool {
	return s.refreshSingleton(ctx, Leadership, models.SlotLeadership, storage.FolderLeadership, &s.leadership)
}

// RefreshRush re-resolves the rush image.
func (s *Store) RefreshRush(ctx context.Context) bool {
	return s.refreshSingleton(ctx, Rush, models.SlotRush, storage.FolderRush, &s.rush)
}

func (s *Store) refreshSingleton(ctx context.Context, name string, slot models.Slot, folder string, dst **models.SiteImage) bool {
	img, err := ResolveSingleton(ctx, s.objects, slot, folder)
	if err != nil {
		return s.failed(name, err)
	}
	if img == nil {
		s.log.WithField("collection", name).Warn("No image found in folder")
	}

	s.mu.Lock()
	*dst = img
	s.mu.Unlock()
	return s.succeeded(name, 1)
}

// ResolveSingleton returns the only file in folder, nil when the folder is
// empty and ErrAmbiguousSingleton when it holds several files.
func ResolveSingleton(ctx context.Context, objects Objects, slot models.Slot, folder string) (*models.SiteImage, error) {
	list, err := objects.List(ctx, folder, 2)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		p := folder + "/" + list[0].Name
		return &models.SiteImage{Slot: slot, Path: p, URL: objects.PublicURL(p)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousSingleton, folder)
	}
}

func (s *Store) failed(collection string, err error) bool {
	s.log.WithField("collection", collection).Errorf("Refresh failed, keeping previous snapshot: %v", err)
	return false
}

func (s *Store) succeeded(collection string, n int) bool {
	metrics.Refreshed(collection, s.now())
	s.log.WithFields(logger.Fields{"collection": collection, "count": n}).Debug("Refreshed")
	return true
}

// Loading reports whether the initial load is still in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Carousel() []models.CarouselImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.carousel)
}

func (s *Store) Roster() []models.ExecMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roster)
}

func (s *Store) News() []models.NewsPost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.news)
}

func (s *Store) Leadership() *models.SiteImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneImage(s.leadership)
}

func (s *Store) Rush() *models.SiteImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneImage(s.rush)
}

func (s *Store) InterestLink() models.InterestFormLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interestLink
}

// Snapshot returns a consistent copy of all collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Carousel:     slices.Clone(s.carousel),
		Roster:       slices.Clone(s.roster),
		News:         slices.Clone(s.news),
		Leadership:   cloneImage(s.leadership),
		Rush:         cloneImage(s.rush),
		InterestLink: s.interestLink,
		Loading:      s.loading,
	}
}

func cloneImage(img *models.SiteImage) *models.SiteImage {
	if img == nil {
		return nil
	}
	c := *img
	return &c
}
