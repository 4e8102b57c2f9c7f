package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRecord возвращается, когда строка из бэкенда не проходит проверку схемы.
var ErrInvalidRecord = errors.New("invalid record")

// Должности, по которым сайт ищет адресатов писем.
const (
	PositionPresident     = "President"
	PositionVicePresident = "Vice President"
	PositionRecruitment   = "Recruitment Chair"
	PositionPhilanthropy  = "Philanthropy Chair"
)

// CarouselImage — одно изображение карусели на главной странице (таблица HomePage).
type CarouselImage struct {
	URL string `json:"url"`
}

// ExecMember — член исполнительного совета (таблица ExecBoard).
// Position уникальна и служит ключом при обновлении, ID задаёт порядок вывода.
type ExecMember struct {
	ID         int    `json:"id"`
	Position   string `json:"position"`
	Name       string `json:"name"`
	Grade      string `json:"grade"`
	Major      string `json:"major"`
	Email      string `json:"email"`
	PictureURL string `json:"picture"`
}

// Validate проверяет, что у члена совета задана должность.
func (m ExecMember) Validate() error {
	if strings.TrimSpace(m.Position) == "" {
		return fmt.Errorf("%w: exec member %d has empty position", ErrInvalidRecord, m.ID)
	}
	return nil
}

// Editable fields of an ExecMember, as named in admin forms.
const (
	FieldName    = "name"
	FieldGrade   = "grade"
	FieldMajor   = "major"
	FieldEmail   = "email"
	FieldPicture = "picture"
)

// Set меняет редактируемое поле по имени. Position и ID не редактируются.
func (m *ExecMember) Set(field, value string) error {
	switch field {
	case FieldName:
		m.Name = value
	case FieldGrade:
		m.Grade = value
	case FieldMajor:
		m.Major = value
	case FieldEmail:
		m.Email = value
	case FieldPicture:
		m.PictureURL = value
	default:
		return fmt.Errorf("unknown exec member field %q", field)
	}
	return nil
}

// SortRoster сортирует состав по возрастанию ID, сохраняя порядок равных.
func SortRoster(members []ExecMember) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].ID < members[j].ID
	})
}

// FindByPosition возвращает первого члена совета с указанной должностью.
func FindByPosition(members []ExecMember, position string) (ExecMember, bool) {
	for _, m := range members {
		if m.Position == position {
			return m, true
		}
	}
	return ExecMember{}, false
}

// NewsPost — запись в разделе последних новостей (таблица RecentNews).
type NewsPost struct {
	ID               int       `json:"id"`
	Title            string    `json:"title"`
	Date             time.Time `json:"date"`
	BriefDescription string    `json:"brief_description"`
	Description      string    `json:"description"`
	ImageURL         string    `json:"image"`
}

// Validate проверяет обязательные поля новости.
func (n NewsPost) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: news post title is required", ErrInvalidRecord)
	}
	if n.Date.IsZero() {
		return fmt.Errorf("%w: news post date is required", ErrInvalidRecord)
	}
	return nil
}

// SortNews сортирует новости по убыванию даты.
func SortNews(posts []NewsPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
}

// Slot identifies a singleton site image.
type Slot string

const (
	SlotLeadership Slot = "leadership"
	SlotRush       Slot = "rush"
)

// SiteImage — изображение-синглтон: единственный файл в папке хранилища.
type SiteImage struct {
	Slot Slot   `json:"slot"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// InterestFormLinkID — первичный ключ единственной строки таблицы RushLink.
const InterestFormLinkID = 1

// InterestFormLink — ссылка на форму для кандидатов.
type InterestFormLink struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}
