// Package poster turns an actor and a handful of their movies into the text
// prompt sent to the image model.
package poster

import (
	"fmt"
	"sort"
	"strings"

	"movieposter/internal/domain"
)

// Compose builds the generation prompt for the given style. It performs no I/O
// and does not enforce the model's prompt length limit.
func Compose(actorName string, movies []domain.Movie, style Style) (string, error) {
	name := strings.TrimSpace(actorName)
	if name == "" {
		return "", domain.InvalidInput("Actor name is required.")
	}
	if len(movies) == 0 {
		return "", domain.InvalidInput("Select at least one movie.")
	}
	if len(movies) > domain.MaxSelectedMovies {
		return "", domain.InvalidInput(fmt.Sprintf("You can only select up to %d movies.", domain.MaxSelectedMovies))
	}

	ordered := make([]domain.Movie, len(movies))
	copy(ordered, movies)
	if style.ordersByRelease() {
		SortByReleaseDesc(ordered)
	}

	switch style {
	case StyleTimelineFlow:
		return timelinePrompt(name, ordered), nil
	case StyleMindMap:
		return mindMapPrompt(name, ordered), nil
	case StyleCinematic:
		return cinematicPrompt(name, ordered), nil
	default:
		return cinematicPrompt(name, ordered), nil
	}
}

// SortByReleaseDesc orders movies most recent first. Movies without a
// parseable release date go last; ties keep their relative order.
func SortByReleaseDesc(movies []domain.Movie) {
	sort.SliceStable(movies, func(i, j int) bool {
		ti, okI := movies[i].ReleaseTime()
		tj, okJ := movies[j].ReleaseTime()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

func cinematicPrompt(name string, movies []domain.Movie) string {
	return fmt.Sprintf(
		"A cinematic movie poster for the actor %s. The poster should feature a prominent, artistic portrait of %s. "+
			"The background should be a subtle, abstract collage representing scenes from their iconic movies, including titles like %s. "+
			"The overall style should be modern, dramatic, and visually stunning.",
		name, name, quotedTitles(movies))
}

func timelinePrompt(name string, movies []domain.Movie) string {
	steps := make([]string, 0, len(movies))
	for _, m := range movies {
		steps = append(steps, titleWithYear(m))
	}
	return fmt.Sprintf(
		"A timeline-style infographic movie poster celebrating the career of %s. "+
			"A portrait of %s anchors the top of the composition, and a flowing path connects key roles from most recent to earliest: %s. "+
			"Each milestone is a small stylized scene labelled with its title and year. "+
			"Clean typography, cinematic lighting, rich colour grading, and a sense of forward motion.",
		name, name, strings.Join(steps, " → "))
}

func mindMapPrompt(name string, movies []domain.Movie) string {
	nodes := make([]string, 0, len(movies))
	for _, m := range movies {
		nodes = append(nodes, titleWithYear(m))
	}
	return fmt.Sprintf(
		"A mind-map style movie poster with %s at the centre as a striking illustrated portrait. "+
			"Branches radiate outward to %d nodes, one per film: %s. "+
			"Each node shows a small vignette evoking the film's mood. "+
			"Hand-drawn connecting lines, balanced layout, bold modern poster design.",
		name, len(movies), strings.Join(nodes, ", "))
}

func quotedTitles(movies []domain.Movie) string {
	titles := make([]string, 0, len(movies))
	for _, m := range movies {
		titles = append(titles, strings.TrimSpace(m.Title))
	}
	return `"` + strings.Join(titles, `", "`) + `"`
}

func titleWithYear(m domain.Movie) string {
	title := strings.TrimSpace(m.Title)
	if year := m.Year(); year != "" {
		return fmt.Sprintf("%s (%s)", title, year)
	}
	return title
}
