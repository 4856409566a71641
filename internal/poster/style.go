package poster

import (
	"strings"

	"golang.org/x/text/cases"
)

// Style selects the poster layout the prompt asks for.
type Style int

const (
	// StyleCinematic is the default portrait-over-collage layout.
	StyleCinematic Style = iota
	StyleTimelineFlow
	StyleMindMap
)

// Styles lists every supported style in menu order.
var Styles = []Style{StyleCinematic, StyleTimelineFlow, StyleMindMap}

// ParseStyle maps a free-form style tag onto a Style. Matching ignores case and
// surrounding whitespace; empty or unknown tags yield the default.
func ParseStyle(tag string) Style {
	// Casers carry state, so each call gets its own.
	fold := cases.Fold()
	key := fold.String(strings.Join(strings.Fields(tag), " "))
	for _, s := range Styles {
		if key == fold.String(s.String()) {
			return s
		}
	}
	switch key {
	case "timeline", "timeline-flow", "timeline_flow":
		return StyleTimelineFlow
	case "mindmap", "mind-map", "mind_map":
		return StyleMindMap
	}
	return StyleCinematic
}

// String returns the display label, which is also the tag clients send.
func (s Style) String() string {
	switch s {
	case StyleTimelineFlow:
		return "Timeline Flow"
	case StyleMindMap:
		return "Mind Map"
	case StyleCinematic:
		return "Cinematic"
	default:
		return "Cinematic"
	}
}

// ordersByRelease reports whether the style lays movies out chronologically.
func (s Style) ordersByRelease() bool {
	return s == StyleTimelineFlow
}
