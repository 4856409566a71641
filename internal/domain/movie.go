package domain

import (
	"strconv"
	"strings"
	"time"
)

// ProfileImageBaseURL is the TMDb image CDN prefix used for portraits.
const ProfileImageBaseURL = "https://image.tmdb.org/t/p/w500"

// Movie is a single credit of an actor as returned by the metadata provider.
type Movie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date,omitempty"`
	PosterPath  string `json:"poster_path,omitempty"`
}

// ReleaseTime parses the ISO release date. The boolean is false for missing or
// malformed dates.
func (m Movie) ReleaseTime() (time.Time, bool) {
	raw := strings.TrimSpace(m.ReleaseDate)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Year returns the four digit release year or an empty string.
func (m Movie) Year() string {
	if t, ok := m.ReleaseTime(); ok {
		return strconv.Itoa(t.Year())
	}
	raw := strings.TrimSpace(m.ReleaseDate)
	if len(raw) >= 4 {
		if _, err := strconv.Atoi(raw[:4]); err == nil {
			return raw[:4]
		}
	}
	return ""
}

// Actor is the searched-for person together with their movie credits.
type Actor struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	ProfilePath        string  `json:"profile_path,omitempty"`
	KnownForDepartment string  `json:"known_for_department,omitempty"`
	Popularity         float64 `json:"popularity,omitempty"`
	Movies             []Movie `json:"movies"`
}

// PortraitURL builds the portrait image URL, or returns "" when the actor has
// no profile image.
func (a Actor) PortraitURL() string {
	path := strings.TrimSpace(a.ProfilePath)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return ProfileImageBaseURL + path
}

// Movie looks up a credit by id.
func (a Actor) Movie(id int) (Movie, bool) {
	for _, m := range a.Movies {
		if m.ID == id {
			return m, true
		}
	}
	return Movie{}, false
}
