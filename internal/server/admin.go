package server

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"ato_site/internal/admin"
	"ato_site/internal/auth"
	"ato_site/internal/models"
)

// SessionCookie хранит access token Supabase администратора.
const SessionCookie = "sb-access-token"

// RefreshCookie хранит refresh token для продления сессии.
const RefreshCookie = "sb-refresh-token"

const refreshTTL = 30 * 24 * time.Hour

const maxUploadSize = 10 << 20

// Якоря разделов админки.
const (
	sectionCarousel = "HomePageUpdate"
	sectionExec     = "ExecUpdate"
	sectionNews     = "RecentNewsUpdate"
	sectionRush     = "RushImageUpdate"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(auth.Claims)
	return c
}

// requireSession пропускает запрос только с действительной сессией.
// Истёкший access token обновляется по refresh token, иначе запрос
// перенаправляется на страницу входа.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.verifyCookie(r)
		if err != nil {
			claims, err = s.refreshSession(w, r)
		}
		if err != nil {
			s.log.Debugf("Rejected admin session: %v", err)
			s.clearSession(w)
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (s *Server) verifyCookie(r *http.Request) (auth.Claims, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return auth.Claims{}, auth.ErrNoSession
	}
	return s.Sessions.Verify(cookie.Value)
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request) (auth.Claims, error) {
	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		return auth.Claims{}, auth.ErrNoSession
	}
	session, err := s.Sessions.Refresh(r.Context(), cookie.Value)
	if err != nil {
		return auth.Claims{}, err
	}
	claims, err := s.Sessions.Verify(session.AccessToken)
	if err != nil {
		return auth.Claims{}, err
	}
	s.setSession(w, session)
	s.log.WithField("user", claims.Subject).Debug("Admin session refreshed")
	return claims, nil
}

func (s *Server) setSession(w http.ResponseWriter, session auth.Session) {
	http.SetCookie(w, s.cookie(SessionCookie, session.AccessToken, session.ExpiresAt))
	if session.RefreshToken != "" {
		http.SetCookie(w, s.cookie(RefreshCookie, session.RefreshToken, time.Now().Add(refreshTTL)))
	}
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(SessionCookie, "", time.Unix(0, 0)))
	http.SetCookie(w, s.cookie(RefreshCookie, "", time.Unix(0, 0)))
}

func (s *Server) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/admin",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// LoginPage показывает форму входа.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", map[string]any{"Title": "Admin Login", "Email": ""})
}

// Login выполняет вход через Supabase Auth и ставит cookie сессии.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))

	session, err := s.Sessions.SignIn(r.Context(), email, r.FormValue("password"))
	if err != nil {
		status, problem := http.StatusBadGateway, "Login failed, try again later"
		if errors.Is(err, auth.ErrInvalidCredentials) {
			status, problem = http.StatusUnauthorized, "Invalid email or password"
		}
		s.log.WithField("email", email).Warnf("Admin login failed: %v", err)
		s.render(w, status, "login", map[string]any{"Title": "Admin Login", "Email": email, "Problem": problem})
		return
	}

	s.setSession(w, session)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout завершает сессию и возвращает на главную.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if claims, err := s.Sessions.Verify(cookie.Value); err == nil {
			s.Console.CancelRosterEdit(claims.Subject)
		}
		if err := s.Sessions.SignOut(r.Context(), cookie.Value); err != nil {
			s.log.Errorf("Error logging out: %v", err)
		}
	}
	s.clearSession(w)
	http.Redirect(w, r, "/?notice="+url.QueryEscape("Successfully logged out"), http.StatusSeeOther)
}

// AdminPage показывает все разделы админки.
func (s *Server) AdminPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.Console.Open(ctx)

	q := r.URL.Query()
	snap := s.Content.Snapshot()
	claims := claimsFrom(ctx)

	page, _ := strconv.Atoi(q.Get("page"))
	newsPage := models.Paginate(snap.News, page, models.NewsPageSize)

	sel := models.NewSelection()
	if q.Get("select") == "all" {
		sel.SelectAll(snap.News)
	}

	var offPage []int
	for _, id := range sel.IDs() {
		if !slices.ContainsFunc(newsPage.Items, func(p models.NewsPost) bool { return p.ID == id }) {
			offPage = append(offPage, id)
		}
	}

	var editing *models.NewsPost
	if id, err := strconv.Atoi(q.Get("edit")); err == nil {
		for _, p := range snap.News {
			if p.ID == id {
				p := p
				editing = &p
				break
			}
		}
	}

	draft, rosterEditing := s.Console.RosterDraft(claims.Subject)
	if !rosterEditing {
		draft = snap.Roster
	}

	s.render(w, http.StatusOK, "admin", map[string]any{
		"Title":           "Admin",
		"Email":           claims.Email,
		"Snapshot":        snap,
		"Roster":          draft,
		"RosterEditing":   rosterEditing,
		"NewsPage":        newsPage,
		"Selection":       sel,
		"OffPageSelected": offPage,
		"EditingNews":     editing,
		"EditingLink":     q.Get("link") == "edit",
		"Notice":          q.Get("notice"),
		"Problem":         q.Get("error"),
	})
}

// back перенаправляет на раздел админки с уведомлением об успехе или ошибке.
func back(w http.ResponseWriter, r *http.Request, section, notice string, err error) {
	v := url.Values{}
	if err != nil {
		var wfErr *admin.WorkflowError
		if errors.As(err, &wfErr) {
			v.Set("error", wfErr.Notice())
		} else {
			v.Set("error", err.Error())
		}
	} else if notice != "" {
		v.Set("notice", notice)
	}
	target := "/admin"
	if len(v) > 0 {
		target += "?" + v.Encode()
	}
	http.Redirect(w, r, target+"#"+section, http.StatusSeeOther)
}

// formUpload достаёт файл из формы; отсутствие файла даёт nil.
func formUpload(r *http.Request, field string) (*admin.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return uploadFrom(file, header), func() { file.Close() }, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *admin.Upload {
	return &admin.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
}

func parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	err := r.ParseMultipartForm(maxUploadSize)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Upload too large or malformed", http.StatusBadRequest)
		return false
	}
	return true
}

// AddCarouselImage загружает новое изображение карусели.
func (s *Server) AddCarouselImage(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	up, done, err := formUpload(r, "image")
	if err != nil {
		back(w, r, sectionCarousel, "", err)
		return
	}
	defer done()

	err = s.Console.AddCarouselImage(r.Context(), up)
	back(w, r, sectionCarousel, "Image uploaded successfully!", err)
}

// DeleteCarouselImage удаляет изображение карусели вместе с файлом.
func (s *Server) DeleteCarouselImage(w http.ResponseWriter, r *http.Request) {
	err := s.Console.DeleteCarouselImage(r.Context(), r.FormValue("url"))
	back(w, r, sectionCarousel, "Image deleted successfully!", err)
}

// BeginRosterEdit открывает буфер редактирования состава.
func (s *Server) BeginRosterEdit(w http.ResponseWriter, r *http.Request) {
	s.Console.BeginRosterEdit(claimsFrom(r.Context()).Subject)
	back(w, r, sectionExec, "", nil)
}

// CancelRosterEdit отбрасывает буфер редактирования.
func (s *Server) CancelRosterEdit(w http.ResponseWriter, r *http.Request) {
	s.Console.CancelRosterEdit(claimsFrom(r.Context()).Subject)
	back(w, r, sectionExec, "", nil)
}

var rosterFields = []string{models.FieldName, models.FieldGrade, models.FieldMajor, models.FieldEmail}

// applyRosterFields переносит поля формы вида name_0, email_3 в буфер.
func (s *Server) applyRosterFields(r *http.Request, session string) error {
	draft, ok := s.Console.RosterDraft(session)
	if !ok {
		return admin.ErrNotEditing
	}
	for i := range draft {
		for _, field := range rosterFields {
			key := field + "_" + strconv.Itoa(i)
			if _, present := r.Form[key]; !present {
				continue
			}
			if err := s.Console.EditMember(session, i, field, strings.TrimSpace(r.FormValue(key))); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveRoster применяет поля формы к буферу и сохраняет состав целиком.
func (s *Server) SaveRoster(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	session := claimsFrom(r.Context()).Subject
	if err := s.applyRosterFields(r, session); err != nil {
		back(w, r, sectionExec, "", err)
		return
	}
	err := s.Console.SaveRoster(r.Context(), session)
	back(w, r, sectionExec, "Executive Board updated successfully!", err)
}

// ReplaceMemberImage загружает новое фото члена совета в буфер.
func (s *Server) ReplaceMemberImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if !parseUpload(w, r) {
		return
	}
	session := claimsFrom(r.Context()).Subject
	if err := s.applyRosterFields(r, session); err != nil {
		back(w, r, sectionExec, "", err)
		return
	}

	up, done, err := formUpload(r, "image_"+strconv.Itoa(index))
	if err != nil {
		back(w, r, sectionExec, "", err)
		return
	}
	defer done()

	_, err = s.Console.ReplaceMemberImage(r.Context(), session, index, up)
	back(w, r, sectionExec, "Executive Board image updated successfully!", err)
}

func newsFromForm(r *http.Request) (models.NewsPost, error) {
	date, err := time.Parse("2006-01-02", r.FormValue("date"))
	if err != nil {
		return models.NewsPost{}, errors.New("date must look like 2006-01-02")
	}
	return models.NewsPost{
		Title:            strings.TrimSpace(r.FormValue("title")),
		Date:             date,
		BriefDescription: strings.TrimSpace(r.FormValue("brief_description")),
		Description:      strings.TrimSpace(r.FormValue("description")),
		ImageURL:         r.FormValue("image_url"),
	}, nil
}

// CreateNews создаёт новость.
func (s *Server) CreateNews(w http.ResponseWriter, r *http.Request) {
	if !parseUpload(w, r) {
		return
	}
	post, err := newsFromForm(r)
	if err != nil {
		back(w, r, sectionNews, "", err)
		return
	}
	up, done, err := formUpload(r, "image")
	if err != nil {
		back(w, r, sectionNews, "", err)
		return
	}
	defer done()

	_, err = s.Console.CreateNews(r.Context(), post, up)
	back(w, r, sectionNews, "News created successfully!", err)
}

// UpdateNews сохраняет изменения новости.
func (s *Server) UpdateNews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid news id", http.StatusBadRequest)
		return
	}
	if !parseUpload(w, r) {
		return
	}
	post, err := newsFromForm(r)
	if err != nil {
		back(w, r, sectionNews, "", err)
		return
	}
	post.ID = id

	up, done, err := formUpload(r, "image")
	if err != nil {
		back(w, r, sectionNews, "", err)
		return
	}
	defer done()

	err = s.Console.UpdateNews(r.Context(), post, up)
	back(w, r, sectionNews, "News updated successfully!", err)
}

// DeleteNews удаляет отмеченные новости.
func (s *Server) DeleteNews(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sel := models.NewSelection()
	for _, raw := range r.Form["ids"] {
		id, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid news id", http.StatusBadRequest)
			return
		}
		if !sel.Has(id) {
			sel.Toggle(id)
		}
	}
	if sel.Len() == 0 {
		back(w, r, sectionNews, "No news selected", nil)
		return
	}

	err := s.Console.DeleteNews(r.Context(), sel)
	back(w, r, sectionNews, "Selected news deleted successfully!", err)
}

// SaveInterestLink обновляет ссылку на форму для кандидатов.
func (s *Server) SaveInterestLink(w http.ResponseWriter, r *http.Request) {
	err := s.Console.SaveInterestLink(r.Context(), r.FormValue("link"))
	back(w, r, sectionRush, "Interest form link updated successfully!", err)
}

// ReplaceLeadershipImage заменяет фото руководства.
func (s *Server) ReplaceLeadershipImage(w http.ResponseWriter, r *http.Request) {
	s.replaceSiteImage(w, r, models.SlotLeadership, sectionExec, "Leadership image uploaded successfully!")
}

// ReplaceRushImage заменяет изображение rush.
func (s *Server) ReplaceRushImage(w http.ResponseWriter, r *http.Request) {
	s.replaceSiteImage(w, r, models.SlotRush, sectionRush, "Rush image uploaded successfully!")
}

func (s *Server) replaceSiteImage(w http.ResponseWriter, r *http.Request, slot models.Slot, section, notice string) {
	if !parseUpload(w, r) {
		return
	}
	up, done, err := formUpload(r, "image")
	if err != nil {
		back(w, r, section, "", err)
		return
	}
	defer done()

	err = s.Console.ReplaceSiteImage(r.Context(), slot, up)
	back(w, r, section, notice, err)
}
