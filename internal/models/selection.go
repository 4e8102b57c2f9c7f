package models

import "sort"

// Selection — временный набор выбранных в админке новостей для пакетного удаления.
type Selection struct {
	ids map[int]struct{}
}

func NewSelection(ids ...int) *Selection {
	s := &Selection{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Toggle добавляет id в выбор или убирает его, если он уже выбран.
func (s *Selection) Toggle(id int) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// SelectAll заменяет выбор всеми id из posts.
func (s *Selection) SelectAll(posts []NewsPost) {
	s.ids = make(map[int]struct{}, len(posts))
	for _, p := range posts {
		s.ids[p.ID] = struct{}{}
	}
}

func (s *Selection) Clear() {
	s.ids = make(map[int]struct{})
}

func (s *Selection) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs возвращает выбранные id по возрастанию.
func (s *Selection) IDs() []int {
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
