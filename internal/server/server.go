package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"ato_site/internal/admin"
	"ato_site/internal/auth"
	"ato_site/internal/cache"
	"ato_site/internal/contact"
	"ato_site/internal/logger"
	"ato_site/internal/middleware"
	"ato_site/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger проверяет доступность базы данных.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Content отдаёт снимок общего кэша.
type Content interface {
	Snapshot() cache.Snapshot
}

// Sessions выполняет вход, выход и проверку токена администратора.
type Sessions interface {
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Verify(accessToken string) (auth.Claims, error)
}

// ContactSubmitter отправляет контактную форму.
type ContactSubmitter interface {
	Submit(ctx context.Context, form contact.Form) (contact.State, error)
}

// Deps — зависимости HTTP-обработчиков.
type Deps struct {
	DB            Pinger
	Content       Content
	Console       *admin.Console
	Submitter     ContactSubmitter
	Sessions      Sessions
	Gatherer      prometheus.Gatherer
	SecureCookies bool
}

// Server хранит зависимости HTTP-обработчиков сайта и админки.
type Server struct {
	Deps
	pages *pages
	log   *logger.Entry
}

// NewServer создаёт новый экземпляр Server и разбирает встроенные шаблоны.
func NewServer(deps Deps) (*Server, error) {
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{Deps: deps, pages: p, log: logger.Service("http")}, nil
}

// Routes регистрирует все маршруты и оборачивает их в middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/carousel", s.GetCarousel)
	mux.HandleFunc("GET /api/exec", s.GetExec)
	mux.HandleFunc("GET /api/news/{limit}", s.GetNews)
	mux.HandleFunc("GET /api/rush", s.GetRush)
	mux.HandleFunc("GET /api/leadership", s.GetLeadership)

	mux.HandleFunc("GET /{$}", s.Home)
	mux.HandleFunc("GET /about", s.About)
	mux.HandleFunc("GET /news", s.NewsPage)
	mux.HandleFunc("GET /rush", s.Rush)
	mux.HandleFunc("GET /contact", s.Contact)
	mux.HandleFunc("POST /contact", s.SubmitContact)

	mux.HandleFunc("GET /admin/login", s.LoginPage)
	mux.HandleFunc("POST /admin/login", s.Login)
	mux.HandleFunc("POST /admin/logout", s.Logout)

	mux.Handle("GET /admin", s.requireSession(s.AdminPage))
	mux.Handle("POST /admin/carousel", s.requireSession(s.AddCarouselImage))
	mux.Handle("POST /admin/carousel/delete", s.requireSession(s.DeleteCarouselImage))
	mux.Handle("POST /admin/exec/edit", s.requireSession(s.BeginRosterEdit))
	mux.Handle("POST /admin/exec/cancel", s.requireSession(s.CancelRosterEdit))
	mux.Handle("POST /admin/exec/save", s.requireSession(s.SaveRoster))
	mux.Handle("POST /admin/exec/{index}/image", s.requireSession(s.ReplaceMemberImage))
	mux.Handle("POST /admin/news", s.requireSession(s.CreateNews))
	mux.Handle("POST /admin/news/delete", s.requireSession(s.DeleteNews))
	mux.Handle("POST /admin/news/{id}", s.requireSession(s.UpdateNews))
	mux.Handle("POST /admin/rush/link", s.requireSession(s.SaveInterestLink))
	mux.Handle("POST /admin/leadership-image", s.requireSession(s.ReplaceLeadershipImage))
	mux.Handle("POST /admin/rush-image", s.requireSession(s.ReplaceRushImage))

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

// HealthCheck отвечает 200 OK, если база доступна, иначе 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		http.Error(w, "DB unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// GetCarousel возвращает JSON-массив изображений карусели.
func (s *Server) GetCarousel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Content.Snapshot().Carousel)
}

// GetExec возвращает состав исполнительного совета, отсортированный по id.
func (s *Server) GetExec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Content.Snapshot().Roster)
}

// GetNews возвращает JSON-массив последних limit новостей, сортированных по дате.
func (s *Server) GetNews(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.PathValue("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	news := s.Content.Snapshot().News
	if len(news) > limit {
		news = news[:limit]
	}
	writeJSON(w, news)
}

type rushResponse struct {
	Image *models.SiteImage `json:"image"`
	Link  string            `json:"interest_form_link"`
}

// GetRush возвращает изображение rush и ссылку на форму для кандидатов.
func (s *Server) GetRush(w http.ResponseWriter, r *http.Request) {
	snap := s.Content.Snapshot()
	writeJSON(w, rushResponse{Image: snap.Rush, Link: snap.InterestLink.Link})
}

// GetLeadership возвращает изображение руководства или null.
func (s *Server) GetLeadership(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Content.Snapshot().Leadership)
}
