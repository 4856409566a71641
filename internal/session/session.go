// Package session holds the state of one interactive poster flow: the current
// actor, the picked movies, the chosen style and the running job.
package session

import (
	"sync"

	"movieposter/internal/domain"
	"movieposter/internal/lifecycle"
	"movieposter/internal/poster"
)

// Session is owned by a single user. Its methods are safe to call from the
// poll goroutine and the UI at the same time.
type Session struct {
	mu        sync.Mutex
	actor     *domain.Actor
	selection domain.Selection
	style     poster.Style
	job       *lifecycle.Job
	tracker   lifecycle.Tracker
}

// New returns an empty session using the default style.
func New() *Session {
	return &Session{style: poster.StyleCinematic}
}

// SetActor replaces the subject wholesale. The selection is cleared and any
// running job is abandoned.
func (s *Session) SetActor(actor *domain.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = actor
	s.selection.Reset(actor)
	s.tracker.Abandon()
	s.job = nil
}

// Actor returns the current subject, or nil before the first search.
func (s *Session) Actor() *domain.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

// Toggle adds or removes a movie of the current actor.
func (s *Session) Toggle(movieID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Toggle(movieID)
}

func (s *Session) IsSelected(movieID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Contains(movieID)
}

// Selected returns the picked movies in the order they were picked.
func (s *Session) Selected() []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Movies()
}

func (s *Session) SetStyle(style poster.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
}

func (s *Session) Style() poster.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// Prompt composes the prompt for the current selection.
func (s *Session) Prompt() (string, error) {
	actor, style, err := s.Submission()
	if err != nil {
		return "", err
	}
	return poster.Compose(actor.Name, actor.Movies, style)
}

// Submission returns a copy of the actor carrying only the selected movies,
// which is what gets sent to the generation endpoint.
func (s *Session) Submission() (domain.Actor, poster.Style, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actor == nil {
		return domain.Actor{}, s.style, domain.InvalidInput("Search for an actor first.")
	}
	if s.selection.Len() == 0 {
		return domain.Actor{}, s.style, domain.InvalidInput("Select at least one movie.")
	}
	actor := *s.actor
	actor.Movies = s.selection.Movies()
	return actor, s.style, nil
}

// Begin records a freshly submitted prediction as the current job and returns
// the token that guards updates to it. A previous job is abandoned.
func (s *Session) Begin(initial domain.Prediction) lifecycle.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.tracker.Begin()
	job := lifecycle.Submit(initial)
	s.job = &job
	return token
}

// Observer returns a lifecycle observer that only applies snapshots while
// token is still the current generation.
func (s *Session) Observer(token lifecycle.Token) lifecycle.Observer {
	return func(job lifecycle.Job) {
		s.Apply(token, job)
	}
}

// Apply stores job if token is current. Stale updates are dropped and false
// is returned.
func (s *Session) Apply(token lifecycle.Token, job lifecycle.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !token.Active() {
		return false
	}
	s.job = &job
	return true
}

// Job returns the latest accepted state of the current job.
func (s *Session) Job() (lifecycle.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return lifecycle.Job{}, false
	}
	return *s.job, true
}

// Cancel abandons the running job; late snapshots are then ignored.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Abandon()
}
