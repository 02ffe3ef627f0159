package route

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abelsonz/rideunited/internal/shared/apperr"
	"github.com/abelsonz/rideunited/internal/shared/geo"
)

// Status tracks where a route sits in the moderation lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Waypoint is one stop along a route. Order is the zero-based position
// in the path; Name is an optional human label.
type Waypoint struct {
	ID       string    `json:"id"`
	Position geo.Point `json:"position"`
	Order    int       `json:"order"`
	Name     string    `json:"name,omitempty"`
}

// Route is a community ride stored in the key-value store. Distance and
// Duration are always derived from the waypoints on write, never taken
// from the client.
type Route struct {
	ID               string     `json:"id"`
	RouteName        string     `json:"routeName"`
	Description      string     `json:"description"`
	LeaderName       string     `json:"leaderName"`
	MapURL           string     `json:"googleMapsUrl"`
	Waypoints        []Waypoint `json:"waypoints"`
	Distance         float64    `json:"distance"`
	Duration         int        `json:"time"`
	StartingLocation string     `json:"startingLocation"`
	StartTime        string     `json:"startTime"`
	Tags             []string   `json:"tags"`
	ImageRef         string     `json:"imageUrl,omitempty"`
	OwnerID          string     `json:"userId,omitempty"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// TagColor is the closed set of colors a ride card may use for a tag.
type TagColor string

const (
	TagGreen  TagColor = "green"
	TagBlue   TagColor = "blue"
	TagPurple TagColor = "purple"
	TagIndigo TagColor = "indigo"
	TagRed    TagColor = "red"
)

var tagColors = map[string]TagColor{
	"beginner-friendly": TagGreen,
	"group ride":        TagGreen,
	"community ride":    TagGreen,
	"scenic":            TagBlue,
	"training":          TagBlue,
	"skatepark":         TagPurple,
	"night ride":        TagIndigo,
	"advanced":          TagRed,
}

// ColorFor maps a tag label to its card color. Unknown labels render green.
func ColorFor(label string) TagColor {
	if c, ok := tagColors[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return TagGreen
}

// Tag pairs a label with its display color for card rendering.
type Tag struct {
	Label string   `json:"label"`
	Color TagColor `json:"color"`
}

// DecoratedTags returns the route's tags with their card colors resolved.
func (r Route) DecoratedTags() []Tag {
	tags := make([]Tag, 0, len(r.Tags))
	for _, label := range r.Tags {
		tags = append(tags, Tag{Label: label, Color: ColorFor(label)})
	}
	return tags
}

// ImageUpload carries a multipart image file through to object storage.
type ImageUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// Submission is the client-supplied portion of a route. Client distance
// and duration values are ignored; stats are recomputed from Waypoints.
type Submission struct {
	RouteName        string
	Description      string
	LeaderName       string
	StartingLocation string
	StartTime        string
	Tags             []string
	Waypoints        []Waypoint
	OwnerID          string
	Image            *ImageUpload
}

func (s Submission) validate() error {
	if strings.TrimSpace(s.RouteName) == "" {
		return fmt.Errorf("routeName is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(s.LeaderName) == "" {
		return fmt.Errorf("leaderName is required: %w", apperr.ErrValidation)
	}
	if len(s.Waypoints) < 2 {
		return fmt.Errorf("a route needs at least two waypoints: %w", apperr.ErrValidation)
	}
	return nil
}

func points(wps []Waypoint) []geo.Point {
	pts := make([]geo.Point, len(wps))
	for i, wp := range wps {
		pts[i] = wp.Position
	}
	return pts
}
