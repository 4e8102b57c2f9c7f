package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ato_site/internal/cache"
	"ato_site/internal/logger"
	"ato_site/internal/models"
	"ato_site/internal/storage"
	"ato_site/internal/testkit"

	"github.com/stretchr/testify/require"
)

func init() {
	logger.Silence()
}

func day(d int) time.Time {
	return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
}

func seeded() *testkit.Backend {
	b := testkit.NewBackend()
	b.SeedCarousel("https://cdn/a.jpg", "", "https://cdn/b.jpg")
	b.SeedExec(
		models.ExecMember{ID: 3, Position: "Treasurer"},
		models.ExecMember{ID: 1, Position: models.PositionPresident, Email: "a@x.org"},
		models.ExecMember{ID: 0, Position: "Historian"},
	)
	b.SeedNews(
		models.NewsPost{Title: "old", Date: day(1)},
		models.NewsPost{Title: "new", Date: day(9)},
		models.NewsPost{Title: "mid", Date: day(5)},
	)
	b.SeedLink("https://forms.example/rush")
	b.SeedObject(storage.FolderLeadership+"/1_lead.jpg", []byte("lead"))
	return b
}

func TestLoad(t *testing.T) {
	b := seeded()
	store := cache.New(b, b)
	require.True(t, store.Loading())

	failed := store.Load(context.Background())
	require.Zero(t, failed)
	require.False(t, store.Loading())

	snap := store.Snapshot()
	require.Equal(t, []models.CarouselImage{{URL: "https://cdn/a.jpg"}, {URL: "https://cdn/b.jpg"}}, snap.Carousel)

	require.Len(t, snap.Roster, 3)
	for i := 1; i < len(snap.Roster); i++ {
		require.LessOrEqual(t, snap.Roster[i-1].ID, snap.Roster[i].ID)
	}
	require.Equal(t, "Historian", snap.Roster[0].Position)

	require.Len(t, snap.News, 3)
	for i := 1; i < len(snap.News); i++ {
		require.False(t, snap.News[i].Date.After(snap.News[i-1].Date))
	}

	require.Equal(t, "https://forms.example/rush", snap.InterestLink.Link)
	require.NotNil(t, snap.Leadership)
	require.Equal(t, testkit.PublicBase+"LeadershipImage/1_lead.jpg", snap.Leadership.URL)
	require.Nil(t, snap.Rush)
}

func TestLoad_PartialFailureKeepsOthers(t *testing.T) {
	b := seeded()
	b.Fail["list_exec"] = errors.New("boom")
	store := cache.New(b, b)

	failed := store.Load(context.Background())
	require.Equal(t, 1, failed)
	require.Empty(t, store.Roster())
	require.Len(t, store.Carousel(), 2)
}

func TestRefresh_FailureKeepsStaleSnapshot(t *testing.T) {
	b := seeded()
	store := cache.New(b, b)
	store.Load(context.Background())

	b.SeedNews(models.NewsPost{Title: "newest", Date: day(20)})
	b.Fail["list_news"] = errors.New("network down")

	require.False(t, store.RefreshNews(context.Background()))
	require.Len(t, store.News(), 3)

	delete(b.Fail, "list_news")
	require.True(t, store.RefreshNews(context.Background()))
	require.Equal(t, "newest", store.News()[0].Title)
}

func TestRefreshSingleton_AmbiguousFolderKeepsPrevious(t *testing.T) {
	b := seeded()
	store := cache.New(b, b)
	require.True(t, store.RefreshLeadership(context.Background()))
	before := store.Leadership()

	b.SeedObject(storage.FolderLeadership+"/2_other.jpg", []byte("x"))
	require.False(t, store.RefreshLeadership(context.Background()))
	require.Equal(t, before, store.Leadership())
}

func TestResolveSingleton(t *testing.T) {
	b := testkit.NewBackend()
	ctx := context.Background()

	img, err := cache.ResolveSingleton(ctx, b, models.SlotRush, storage.FolderRush)
	require.NoError(t, err)
	require.Nil(t, img)

	b.SeedObject(storage.FolderRush+"/1_rush.png", nil)
	img, err = cache.ResolveSingleton(ctx, b, models.SlotRush, storage.FolderRush)
	require.NoError(t, err)
	require.Equal(t, &models.SiteImage{
		Slot: models.SlotRush,
		Path: "RushImage/1_rush.png",
		URL:  testkit.PublicBase + "RushImage/1_rush.png",
	}, img)

	b.SeedObject(storage.FolderRush+"/2_rush.png", nil)
	_, err = cache.ResolveSingleton(ctx, b, models.SlotRush, storage.FolderRush)
	require.ErrorIs(t, err, cache.ErrAmbiguousSingleton)
}

func TestSnapshotIsACopy(t *testing.T) {
	b := seeded()
	store := cache.New(b, b)
	store.Load(context.Background())

	roster := store.Roster()
	roster[0].Name = "mutated"
	require.NotEqual(t, "mutated", store.Roster()[0].Name)
}

func TestStartPolling_StopsOnCancel(t *testing.T) {
	b := seeded()
	store := cache.New(b, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.StartPolling(ctx, store, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !store.Loading() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
