package domain

// MaxSelectedMovies bounds how many movies can feed a single poster.
const MaxSelectedMovies = 5

// Selection is the ordered set of movies picked from the current actor. The
// zero value is an empty selection bound to no actor.
type Selection struct {
	actor  *Actor
	movies []Movie
}

// NewSelection returns an empty selection bound to actor.
func NewSelection(actor *Actor) *Selection {
	return &Selection{actor: actor}
}

// Reset binds the selection to a new actor and clears it.
func (s *Selection) Reset(actor *Actor) {
	s.actor = actor
	s.movies = nil
}

// Toggle removes the movie if selected, otherwise adds it. Adding past
// MaxSelectedMovies or adding a movie the actor does not have leaves the
// selection unchanged and returns an InvalidInput error.
func (s *Selection) Toggle(movieID int) (selected bool, err error) {
	for i, m := range s.movies {
		if m.ID == movieID {
			s.movies = append(s.movies[:i:i], s.movies[i+1:]...)
			return false, nil
		}
	}
	if s.actor == nil {
		return false, &Error{Kind: KindInvalidInput, Detail: "Search for an actor first.", Err: ErrMovieNotAvailable}
	}
	movie, ok := s.actor.Movie(movieID)
	if !ok {
		return false, &Error{Kind: KindInvalidInput, Detail: "Movie is not part of this actor's credits.", Err: ErrMovieNotAvailable}
	}
	if len(s.movies) >= MaxSelectedMovies {
		return false, &Error{Kind: KindInvalidInput, Detail: "You can only select up to 5 movies.", Err: ErrSelectionFull}
	}
	s.movies = append(s.movies, movie)
	return true, nil
}

// Contains reports whether the movie is selected.
func (s *Selection) Contains(movieID int) bool {
	for _, m := range s.movies {
		if m.ID == movieID {
			return true
		}
	}
	return false
}

// Full reports whether no further movie can be added.
func (s *Selection) Full() bool {
	return len(s.movies) >= MaxSelectedMovies
}

func (s *Selection) Len() int {
	return len(s.movies)
}

// Movies returns a copy of the selected movies in selection order.
func (s *Selection) Movies() []Movie {
	out := make([]Movie, len(s.movies))
	copy(out, s.movies)
	return out
}
