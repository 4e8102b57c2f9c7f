// Package contact turns contact-form submissions into one EmailJS message
// addressed to the chapter and the officers responsible for the topic.
package contact

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"ato_site/internal/logger"
	"ato_site/internal/models"
)

// Reasons offered by the contact form.
const (
	ReasonRush         = "Rush and Recruitment"
	ReasonPhilanthropy = "Philanthropy"
	ReasonAlumni       = "Alumni"
	ReasonPR           = "PR"
	ReasonOther        = "Other"
)

// Reasons lists the form options in display order.
var Reasons = []string{ReasonRush, ReasonPhilanthropy, ReasonAlumni, ReasonPR, ReasonOther}

// RecipientSeparator joins addresses in the to_email template field.
const RecipientSeparator = ", "

// State is the submission status shown under the form.
type State int

const (
	Idle State = iota
	Sending
	Sent
	Failed
)

func (s State) String() string {
	switch s {
	case Sending:
		return "Sending..."
	case Sent:
		return "Form Submitted Successfully"
	case Failed:
		return "Failed to send form"
	default:
		return ""
	}
}

var phonePattern = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)

// ErrInvalidForm wraps every validation failure.
var ErrInvalidForm = errors.New("invalid contact form")

// Form is one submission.
type Form struct {
	Name    string
	Email   string
	Phone   string
	Reason  string
	Message string
}

// Validate checks the fields the form marks as required.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidForm)
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalidForm, f.Email)
	}
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		return fmt.Errorf("%w: phone must look like 999-999-9999", ErrInvalidForm)
	}
	if strings.TrimSpace(f.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidForm)
	}
	if strings.TrimSpace(f.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidForm)
	}
	return nil
}

// Recipients lists who receives a message about reason: the fixed chapter
// address, the president and the vice president, plus the recruitment or
// philanthropy chair for those reasons. Unresolved addresses are dropped.
func Recipients(fixed string, roster []models.ExecMember, reason string) []string {
	positions := []string{models.PositionPresident, models.PositionVicePresident}
	switch reason {
	case ReasonRush:
		positions = append(positions, models.PositionRecruitment)
	case ReasonPhilanthropy:
		positions = append(positions, models.PositionPhilanthropy)
	}

	out := []string{}
	if fixed = strings.TrimSpace(fixed); fixed != "" {
		out = append(out, fixed)
	}
	for _, position := range positions {
		member, ok := models.FindByPosition(roster, position)
		if !ok {
			continue
		}
		if email := strings.TrimSpace(member.Email); email != "" {
			out = append(out, email)
		}
	}
	return out
}

// Sender dispatches template params to the email provider.
type Sender interface {
	Send(ctx context.Context, params map[string]string) error
}

// RosterSource provides the current executive board snapshot.
type RosterSource interface {
	Roster() []models.ExecMember
}

// Submitter sends contact forms. It keeps no per-submission state.
type Submitter struct {
	fixed  string
	roster RosterSource
	sender Sender
	log    *logger.Entry
}

func NewSubmitter(fixed string, roster RosterSource, sender Sender) *Submitter {
	return &Submitter{fixed: fixed, roster: roster, sender: sender, log: logger.Service("contact")}
}

// Submit validates form and sends it once. The returned state is Sent or Failed.
func (s *Submitter) Submit(ctx context.Context, form Form) (State, error) {
	if err := form.Validate(); err != nil {
		return Failed, err
	}

	to := Recipients(s.fixed, s.roster.Roster(), form.Reason)
	params := map[string]string{
		"name":     form.Name,
		"email":    form.Email,
		"phone":    form.Phone,
		"reason":   form.Reason,
		"message":  form.Message,
		"to_email": strings.Join(to, RecipientSeparator),
	}

	log := s.log.WithFields(logger.Fields{"reason": form.Reason, "recipients": len(to)})
	if err := s.sender.Send(ctx, params); err != nil {
		log.Errorf("Contact form send failed: %v", err)
		return Failed, fmt.Errorf("send contact form: %w", err)
	}
	log.Info("Contact form sent")
	return Sent, nil
}
