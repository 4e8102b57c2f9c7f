package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ato_site/internal/admin"
	"ato_site/internal/auth"
	"ato_site/internal/cache"
	"ato_site/internal/contact"
	"ato_site/internal/logger"
	"ato_site/internal/models"
	"ato_site/internal/server"
	"ato_site/internal/testkit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Silence()
}

const (
	goodToken    = "good-token"
	goodRefresh  = "good-refresh"
	rotatedToken = "rotated-refresh"
)

type stubSessions struct {
	signedOut []string
	refreshed []string
}

func (s *stubSessions) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	if email != "admin@x.org" || password != "secret" {
		return auth.Session{}, auth.ErrInvalidCredentials
	}
	return auth.Session{AccessToken: goodToken, RefreshToken: goodRefresh, ExpiresAt: time.Now().Add(time.Hour), UserID: "admin-1", Email: email}, nil
}

func (s *stubSessions) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	s.refreshed = append(s.refreshed, refreshToken)
	if refreshToken != goodRefresh {
		return auth.Session{}, auth.ErrNoSession
	}
	return auth.Session{AccessToken: goodToken, RefreshToken: rotatedToken, ExpiresAt: time.Now().Add(time.Hour), UserID: "admin-1"}, nil
}

func (s *stubSessions) SignOut(ctx context.Context, token string) error {
	s.signedOut = append(s.signedOut, token)
	return nil
}

func (s *stubSessions) Verify(token string) (auth.Claims, error) {
	if token != goodToken {
		return auth.Claims{}, auth.ErrNoSession
	}
	return auth.Claims{Subject: "admin-1", Email: "admin@x.org", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type stubSender struct {
	params []map[string]string
	err    error
}

func (s *stubSender) Send(ctx context.Context, params map[string]string) error {
	s.params = append(s.params, params)
	return s.err
}

type fixture struct {
	backend  *testkit.Backend
	store    *cache.Store
	sender   *stubSender
	sessions *stubSessions
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := testkit.NewBackend()
	b.SeedExec(
		models.ExecMember{ID: 1, Position: models.PositionPresident, Name: "Al", Email: "a@x.org"},
		models.ExecMember{ID: 2, Position: models.PositionVicePresident, Name: "Bea", Email: "b@x.org"},
	)
	b.SeedNews(
		models.NewsPost{ID: 3, Title: "Old", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		models.NewsPost{ID: 7, Title: "Newest", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		models.NewsPost{ID: 9, Title: "Middle", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	)
	b.SeedLink("https://forms.example/rush")

	f := &fixture{backend: b, sender: &stubSender{}, sessions: &stubSessions{}}
	f.store = cache.New(b, b)
	f.store.Load(context.Background())

	srv, err := server.NewServer(server.Deps{
		DB:        b,
		Content:   f.store,
		Console:   admin.NewConsole(b, b, f.store),
		Submitter: contact.NewSubmitter("org@fixed", f.store, f.sender),
		Sessions:  f.sessions,
		Gatherer:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	f.handler = srv.Routes()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: server.SessionCookie, Value: goodToken})
	return req
}

func postForm(target string, v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postMultipart(t *testing.T, target string, fields map[string]string, fileField, fileName string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func location(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code)
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	f.backend.Fail["ping"] = errors.New("down")
	w = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetNews(t *testing.T) {
	f := newFixture(t)

	t.Run("limit", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/news/2", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var posts []models.NewsPost
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
		require.Len(t, posts, 2)
		require.Equal(t, "Newest", posts[0].Title)
		require.Equal(t, "Middle", posts[1].Title)
	})

	t.Run("invalid limit falls back to default", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/news/abc", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var posts []models.NewsPost
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
		require.Len(t, posts, 3)
	})
}

func TestGetRush(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/rush", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"image":null,"interest_form_link":"https://forms.example/rush"}`, w.Body.String())
}

func TestPublicPages(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "<nav>"},
		{"/about", "Bea"},
		{"/news", "Newest"},
		{"/rush", "https://forms.example/rush"},
		{"/contact", "Rush and Recruitment"},
		{"/admin/login", `name="password"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := f.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, w.Code)
			require.Contains(t, w.Body.String(), tt.want)
		})
	}

	w := f.do(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestContactSubmit(t *testing.T) {
	f := newFixture(t)

	t.Run("sent", func(t *testing.T) {
		w := f.do(postForm("/contact", url.Values{
			"name":    {"Sam"},
			"email":   {"sam@x.org"},
			"reason":  {contact.ReasonOther},
			"message": {"hello"},
		}))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "Form Submitted Successfully")
		require.Len(t, f.sender.params, 1)
		require.Equal(t, "org@fixed, a@x.org, b@x.org", f.sender.params[0]["to_email"])
	})

	t.Run("invalid form", func(t *testing.T) {
		w := f.do(postForm("/contact", url.Values{"name": {"Sam"}}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), "Failed to send form")
		require.Len(t, f.sender.params, 1)
	})

	t.Run("provider failure", func(t *testing.T) {
		f.sender.err = errors.New("boom")
		w := f.do(postForm("/contact", url.Values{
			"name":    {"Sam"},
			"email":   {"sam@x.org"},
			"reason":  {contact.ReasonOther},
			"message": {"hello"},
		}))
		require.Equal(t, http.StatusBadGateway, w.Code)
		require.Contains(t, w.Body.String(), "Failed to send form")
		require.Contains(t, w.Body.String(), "hello")
	})
}

func TestAdminRequiresSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, "/admin/login", location(t, w).Path)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: server.SessionCookie, Value: "forged"})
	w = f.do(req)
	require.Equal(t, "/admin/login", location(t, w).Path)

	w = f.do(postForm("/admin/news/delete", url.Values{"ids": {"3"}}))
	require.Equal(t, "/admin/login", location(t, w).Path)
	require.Len(t, f.backend.NewsRows(), 3)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(postForm("/admin/login", url.Values{"email": {"admin@x.org"}, "password": {"wrong"}}))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid email or password")

	w = f.do(postForm("/admin/login", url.Values{"email": {"admin@x.org"}, "password": {"secret"}}))
	require.Equal(t, "/admin", location(t, w).Path)

	cookies := cookieMap(w)
	require.Len(t, cookies, 2)
	require.Equal(t, goodToken, cookies[server.SessionCookie].Value)
	require.Equal(t, goodRefresh, cookies[server.RefreshCookie].Value)
	require.True(t, cookies[server.SessionCookie].HttpOnly)
	require.True(t, cookies[server.RefreshCookie].HttpOnly)
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestAdminRefreshesExpiredSession(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: server.SessionCookie, Value: "expired"})
	req.AddCookie(&http.Cookie{Name: server.RefreshCookie, Value: goodRefresh})
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{goodRefresh}, f.sessions.refreshed)

	cookies := cookieMap(w)
	require.Equal(t, goodToken, cookies[server.SessionCookie].Value)
	require.Equal(t, rotatedToken, cookies[server.RefreshCookie].Value)

	t.Run("missing access cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: server.RefreshCookie, Value: goodRefresh})
		require.Equal(t, http.StatusOK, f.do(req).Code)
	})

	t.Run("dead refresh token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: server.SessionCookie, Value: "expired"})
		req.AddCookie(&http.Cookie{Name: server.RefreshCookie, Value: "revoked"})
		w := f.do(req)
		require.Equal(t, "/admin/login", location(t, w).Path)

		cookies := cookieMap(w)
		require.Empty(t, cookies[server.SessionCookie].Value)
		require.Empty(t, cookies[server.RefreshCookie].Value)
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postForm("/admin/logout", nil)))
	u := location(t, w)
	require.Equal(t, "/", u.Path)
	require.Equal(t, "Successfully logged out", u.Query().Get("notice"))
	require.Equal(t, []string{goodToken}, f.sessions.signedOut)

	cookies := cookieMap(w)
	require.Len(t, cookies, 2)
	require.Empty(t, cookies[server.SessionCookie].Value)
	require.Empty(t, cookies[server.RefreshCookie].Value)
}

func TestAdminPage(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(httptest.NewRequest(http.MethodGet, "/admin?select=all", nil)))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, section := range []string{"HomePageUpdate", "ExecUpdate", "RecentNewsUpdate", "RushImageUpdate"} {
		require.Contains(t, body, `id="`+section+`"`)
	}
	require.Contains(t, body, "admin@x.org")
	require.Contains(t, body, `value="7" checked`)
}

func TestAdminCarouselUpload(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postMultipart(t, "/admin/carousel", nil, "image", "party.jpg")))
	u := location(t, w)
	require.Equal(t, "Image uploaded successfully!", u.Query().Get("notice"))
	require.Equal(t, "HomePageUpdate", u.Fragment)
	require.Len(t, f.backend.CarouselRows(), 1)
	require.Len(t, f.store.Carousel(), 1)

	t.Run("insert failure is reported", func(t *testing.T) {
		f.backend.Fail["insert_carousel"] = errors.New("db down")
		w := f.do(authed(postMultipart(t, "/admin/carousel", nil, "image", "again.jpg")))
		u := location(t, w)
		require.Equal(t, "Error uploading image", u.Query().Get("error"))
		require.Len(t, f.backend.ObjectPaths("HomePageImages"), 1)
	})

	t.Run("missing file", func(t *testing.T) {
		w := f.do(authed(postMultipart(t, "/admin/carousel", nil, "", "")))
		require.NotEmpty(t, location(t, w).Query().Get("error"))
	})
}

func TestAdminRosterEdit(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postForm("/admin/exec/save", url.Values{"name_0": {"Alice"}})))
	require.NotEmpty(t, location(t, w).Query().Get("error"))

	w = f.do(authed(postForm("/admin/exec/edit", nil)))
	require.Equal(t, "ExecUpdate", location(t, w).Fragment)

	w = f.do(authed(httptest.NewRequest(http.MethodGet, "/admin", nil)))
	require.Contains(t, w.Body.String(), `name="name_0"`)

	w = f.do(authed(postMultipart(t, "/admin/exec/save", map[string]string{
		"name_0":  "Alice",
		"email_1": "vp@x.org",
	}, "", "")))
	require.Equal(t, "Executive Board updated successfully!", location(t, w).Query().Get("notice"))

	rows := f.backend.ExecRows()
	require.Equal(t, "Alice", rows[0].Name)
	require.Equal(t, "vp@x.org", rows[1].Email)
	require.Equal(t, "Alice", f.store.Roster()[0].Name)
}

func TestAdminDeleteNews(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postForm("/admin/news/delete", url.Values{"ids": {"3", "7", "7"}})))
	require.Equal(t, "Selected news deleted successfully!", location(t, w).Query().Get("notice"))

	rows := f.backend.NewsRows()
	require.Len(t, rows, 1)
	require.Equal(t, 9, rows[0].ID)
	require.Len(t, f.store.News(), 1)
}

func TestAdminCreateNews(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postMultipart(t, "/admin/news", map[string]string{
		"title": "Formal",
		"date":  "2024-04-01",
	}, "image", "formal.png")))
	require.Equal(t, "News created successfully!", location(t, w).Query().Get("notice"))

	news := f.store.News()
	require.Equal(t, "Formal", news[0].Title)
	require.True(t, strings.HasPrefix(news[0].ImageURL, testkit.PublicBase+"RecentNewsImages/"))

	w = f.do(authed(postMultipart(t, "/admin/news", map[string]string{"title": "No date"}, "", "")))
	require.NotEmpty(t, location(t, w).Query().Get("error"))
}

func TestAdminSaveInterestLink(t *testing.T) {
	f := newFixture(t)

	w := f.do(authed(postForm("/admin/rush/link", url.Values{"link": {"https://forms.example/new"}})))
	u := location(t, w)
	require.Equal(t, "RushImageUpdate", u.Fragment)
	require.Empty(t, u.Query().Get("error"))
	require.Equal(t, "https://forms.example/new", f.backend.Link())
	require.Equal(t, "https://forms.example/new", f.store.InterestLink().Link)
}

func TestAdminReplaceRushImage(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedObject("RushImage/old.png", []byte("old"))

	w := f.do(authed(postMultipart(t, "/admin/rush-image", nil, "image", "new.png")))
	require.Empty(t, location(t, w).Query().Get("error"))

	paths := f.backend.ObjectPaths("RushImage")
	require.Len(t, paths, 1)
	require.NotEqual(t, "RushImage/old.png", paths[0])
	require.NotNil(t, f.store.Rush())
}

func TestPagesRenderBeforeFirstLoad(t *testing.T) {
	b := testkit.NewBackend()
	b.SeedNews(models.NewsPost{ID: 1, Title: "Not yet", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	store := cache.New(b, b)

	srv, err := server.NewServer(server.Deps{
		DB:        b,
		Content:   store,
		Console:   admin.NewConsole(b, b, store),
		Submitter: contact.NewSubmitter("org@fixed", store, &stubSender{}),
		Sessions:  &stubSessions{},
		Gatherer:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	handler := srv.Routes()

	for _, path := range []string{"/", "/news"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "Loading...")
		require.NotContains(t, w.Body.String(), "Not yet")
	}

	require.True(t, store.RefreshNews(context.Background()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/news", nil))
	require.Contains(t, w.Body.String(), "Not yet")
}
