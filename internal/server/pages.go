package server

import (
	"errors"
	"net/http"
	"strings"

	"ato_site/internal/contact"
)

// Home показывает главную страницу с каруселью.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	snap := s.Content.Snapshot()
	s.render(w, http.StatusOK, "home", map[string]any{
		"Title":    "Home",
		"Loading":  snap.Loading,
		"Carousel": snap.Carousel,
		"Notice":   r.URL.Query().Get("notice"),
	})
}

// About показывает фото руководства и состав совета.
func (s *Server) About(w http.ResponseWriter, r *http.Request) {
	snap := s.Content.Snapshot()
	s.render(w, http.StatusOK, "about", map[string]any{
		"Title":      "About",
		"Loading":    snap.Loading,
		"Leadership": snap.Leadership,
		"Roster":     snap.Roster,
	})
}

// NewsPage показывает последние новости.
func (s *Server) NewsPage(w http.ResponseWriter, r *http.Request) {
	snap := s.Content.Snapshot()
	s.render(w, http.StatusOK, "news", map[string]any{
		"Title":   "Recent News",
		"Loading": snap.Loading,
		"News":    snap.News,
	})
}

// Rush показывает расписание rush и ссылку на форму для кандидатов.
func (s *Server) Rush(w http.ResponseWriter, r *http.Request) {
	snap := s.Content.Snapshot()
	s.render(w, http.StatusOK, "rush", map[string]any{
		"Title":   "Rush",
		"Loading": snap.Loading,
		"Image":   snap.Rush,
		"Link":    snap.InterestLink.Link,
	})
}

// Contact показывает пустую контактную форму.
func (s *Server) Contact(w http.ResponseWriter, r *http.Request) {
	s.renderContact(w, http.StatusOK, contact.Form{}, contact.Idle, "")
}

// SubmitContact отправляет форму и показывает итоговое состояние.
func (s *Server) SubmitContact(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := contact.Form{
		Name:    strings.TrimSpace(r.FormValue("name")),
		Email:   strings.TrimSpace(r.FormValue("email")),
		Phone:   strings.TrimSpace(r.FormValue("phone")),
		Reason:  r.FormValue("reason"),
		Message: r.FormValue("message"),
	}

	state, err := s.Submitter.Submit(r.Context(), form)
	switch {
	case errors.Is(err, contact.ErrInvalidForm):
		s.renderContact(w, http.StatusBadRequest, form, state, err.Error())
	case err != nil:
		s.renderContact(w, http.StatusBadGateway, form, state, "")
	default:
		s.renderContact(w, http.StatusOK, contact.Form{}, state, "")
	}
}

func (s *Server) renderContact(w http.ResponseWriter, status int, form contact.Form, state contact.State, problem string) {
	s.render(w, status, "contact", map[string]any{
		"Title":   "Contact Us",
		"Form":    form,
		"Reasons": contact.Reasons,
		"Result":  state.String(),
		"Problem": problem,
	})
}
