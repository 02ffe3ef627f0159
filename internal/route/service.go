package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
	"github.com/abelsonz/rideunited/internal/shared/geo"
	"github.com/abelsonz/rideunited/internal/storage"
)

const (
	routePrefix = "route:"
	pendingIdx  = "routes:pending"
	approvedIdx = "routes:approved"
)

func routeKey(id string) string { return routePrefix + id }

func ownerIdx(userID string) string { return "user:" + userID + ":routes" }

func statusIdx(s Status) (string, bool) {
	switch s {
	case StatusPending:
		return pendingIdx, true
	case StatusApproved:
		return approvedIdx, true
	default:
		return "", false
	}
}

// Caller identifies who is asking for a mutation.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// Service owns route submission, moderation and listing.
type Service struct {
	store   *kv.Store
	objects storage.ObjectStore
	now     func() time.Time
}

func NewService(store *kv.Store, objects storage.ObjectStore) *Service {
	return &Service{store: store, objects: objects, now: time.Now}
}

// Submit validates and stores a new route in pending status. Distance,
// duration and the directions URL are computed from the waypoints.
func (s *Service) Submit(ctx context.Context, sub Submission) (Route, error) {
	if err := sub.validate(); err != nil {
		return Route{}, err
	}
	wps := orderedWaypoints(sub.Waypoints)
	pts := points(wps)
	stats := geo.PathStats(pts)

	r := Route{
		ID:               uuid.NewString(),
		RouteName:        sub.RouteName,
		Description:      sub.Description,
		LeaderName:       sub.LeaderName,
		MapURL:           geo.DirectionsURL(pts),
		Waypoints:        wps,
		Distance:         stats.Distance,
		Duration:         stats.Duration,
		StartingLocation: sub.StartingLocation,
		StartTime:        sub.StartTime,
		Tags:             sub.Tags,
		OwnerID:          sub.OwnerID,
		Status:           StatusPending,
		CreatedAt:        s.now().UTC(),
	}

	if sub.Image != nil {
		key := storage.ObjectKey(s.now(), sub.Image.FileName)
		if err := s.objects.Upload(ctx, key, sub.Image.ContentType, sub.Image.Body); err != nil {
			return Route{}, fmt.Errorf("upload route image: %v: %w", err, apperr.ErrStorage)
		}
		r.ImageRef = key
	}

	// Record first, index second. A crash in between leaves a stale
	// index entry at worst, which listings already skip.
	if err := s.store.Set(ctx, routeKey(r.ID), r); err != nil {
		if r.ImageRef != "" {
			_ = s.objects.Delete(ctx, r.ImageRef)
		}
		return Route{}, fmt.Errorf("store route: %v: %w", err, apperr.ErrStorage)
	}
	if err := s.store.AppendID(ctx, pendingIdx, r.ID); err != nil {
		return Route{}, fmt.Errorf("index route: %v: %w", err, apperr.ErrStorage)
	}
	if r.OwnerID != "" {
		if err := s.store.AppendID(ctx, ownerIdx(r.OwnerID), r.ID); err != nil {
			return Route{}, fmt.Errorf("index route for owner: %v: %w", err, apperr.ErrStorage)
		}
	}
	return r, nil
}

// Approved returns the public listing: approved routes with upcoming
// rides first (soonest start time leading), past rides after, and
// undated routes at the end of each group.
func (s *Service) Approved(ctx context.Context) ([]Route, error) {
	routes, err := s.byIndex(ctx, approvedIdx)
	if err != nil {
		return nil, err
	}
	s.resolveImages(ctx, routes)
	sortForListing(routes, s.now())
	return routes, nil
}

// ByOwner returns every route a user has submitted, any status.
func (s *Service) ByOwner(ctx context.Context, userID string) ([]Route, error) {
	routes, err := s.byIndex(ctx, ownerIdx(userID))
	if err != nil {
		return nil, err
	}
	s.resolveImages(ctx, routes)
	return routes, nil
}

// Pending returns routes awaiting review, for the moderation queue.
func (s *Service) Pending(ctx context.Context) ([]Route, error) {
	return s.byStatusScan(ctx, StatusPending)
}

// ApprovedForReview returns approved routes for the admin dashboard.
func (s *Service) ApprovedForReview(ctx context.Context) ([]Route, error) {
	return s.byStatusScan(ctx, StatusApproved)
}

// Approve moves a pending route into the public listing.
func (s *Service) Approve(ctx context.Context, id string) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != StatusPending {
		return fmt.Errorf("route is %s, only pending routes can be approved: %w", r.Status, apperr.ErrValidation)
	}
	r.Status = StatusApproved
	if err := s.store.Set(ctx, routeKey(r.ID), r); err != nil {
		return fmt.Errorf("store route: %v: %w", err, apperr.ErrStorage)
	}
	if err := s.store.RemoveID(ctx, pendingIdx, r.ID); err != nil {
		return fmt.Errorf("unindex pending route: %v: %w", err, apperr.ErrStorage)
	}
	if err := s.store.AppendID(ctx, approvedIdx, r.ID); err != nil {
		return fmt.Errorf("index approved route: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}

// Reject marks a pending route rejected and discards its stored image.
func (s *Service) Reject(ctx context.Context, id string) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != StatusPending {
		return fmt.Errorf("route is %s, only pending routes can be rejected: %w", r.Status, apperr.ErrValidation)
	}
	if err := s.dropImage(ctx, r.ImageRef); err != nil {
		return err
	}
	r.ImageRef = ""
	r.Status = StatusRejected
	if err := s.store.Set(ctx, routeKey(r.ID), r); err != nil {
		return fmt.Errorf("store route: %v: %w", err, apperr.ErrStorage)
	}
	if err := s.store.RemoveID(ctx, pendingIdx, r.ID); err != nil {
		return fmt.Errorf("unindex pending route: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}

// Update replaces a route's client-editable fields and recomputes its
// stats. Owners may edit their own pending routes; admins may edit any
// route in any status.
func (s *Service) Update(ctx context.Context, id string, sub Submission, caller Caller) (Route, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return Route{}, err
	}
	if !caller.IsAdmin {
		if r.OwnerID == "" || r.OwnerID != caller.UserID {
			return Route{}, fmt.Errorf("only the route owner can edit it: %w", apperr.ErrForbidden)
		}
		if r.Status != StatusPending {
			return Route{}, fmt.Errorf("route has already been reviewed: %w", apperr.ErrForbidden)
		}
	}
	if err := sub.validate(); err != nil {
		return Route{}, err
	}

	wps := orderedWaypoints(sub.Waypoints)
	pts := points(wps)
	stats := geo.PathStats(pts)

	if sub.Image != nil {
		key := storage.ObjectKey(s.now(), sub.Image.FileName)
		if err := s.objects.Upload(ctx, key, sub.Image.ContentType, sub.Image.Body); err != nil {
			return Route{}, fmt.Errorf("upload route image: %v: %w", err, apperr.ErrStorage)
		}
		if err := s.dropImage(ctx, r.ImageRef); err != nil {
			return Route{}, err
		}
		r.ImageRef = key
	}

	r.RouteName = sub.RouteName
	r.Description = sub.Description
	r.LeaderName = sub.LeaderName
	r.MapURL = geo.DirectionsURL(pts)
	r.Waypoints = wps
	r.Distance = stats.Distance
	r.Duration = stats.Duration
	r.StartingLocation = sub.StartingLocation
	r.StartTime = sub.StartTime
	r.Tags = sub.Tags

	if err := s.store.Set(ctx, routeKey(r.ID), r); err != nil {
		return Route{}, fmt.Errorf("store route: %v: %w", err, apperr.ErrStorage)
	}
	return r, nil
}

// Delete removes a route, its stored image, and its status index entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.dropImage(ctx, r.ImageRef); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, routeKey(r.ID)); err != nil {
		return fmt.Errorf("delete route: %v: %w", err, apperr.ErrStorage)
	}
	if idx, ok := statusIdx(r.Status); ok {
		if err := s.store.RemoveID(ctx, idx, r.ID); err != nil {
			return fmt.Errorf("unindex route: %v: %w", err, apperr.ErrStorage)
		}
	}
	return nil
}

// DeleteOwned removes every route a user submitted, along with their
// owner index. Used when an account is deleted.
func (s *Service) DeleteOwned(ctx context.Context, userID string) error {
	ids, err := s.store.IDs(ctx, ownerIdx(userID))
	if err != nil {
		return fmt.Errorf("list owned routes: %v: %w", err, apperr.ErrStorage)
	}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}
	}
	if err := s.store.Delete(ctx, ownerIdx(userID)); err != nil {
		return fmt.Errorf("delete owner index: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (Route, error) {
	var r Route
	found, err := s.store.Get(ctx, routeKey(id), &r)
	if err != nil {
		return Route{}, fmt.Errorf("load route: %v: %w", err, apperr.ErrStorage)
	}
	if !found {
		return Route{}, fmt.Errorf("route %s not found: %w", id, apperr.ErrNotFound)
	}
	return r, nil
}

// byIndex loads the routes an id list points at, skipping stale entries
// whose records are gone.
func (s *Service) byIndex(ctx context.Context, idxKey string) ([]Route, error) {
	ids, err := s.store.IDs(ctx, idxKey)
	if err != nil {
		return nil, fmt.Errorf("list route ids: %v: %w", err, apperr.ErrStorage)
	}
	if len(ids) == 0 {
		return []Route{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = routeKey(id)
	}
	payloads, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load routes: %v: %w", err, apperr.ErrStorage)
	}
	routes := make([]Route, 0, len(payloads))
	for _, payload := range payloads {
		if payload == nil {
			continue
		}
		var r Route
		if err := json.Unmarshal(payload, &r); err != nil {
			continue
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func (s *Service) byStatusScan(ctx context.Context, status Status) ([]Route, error) {
	payloads, err := s.store.GetByPrefix(ctx, routePrefix)
	if err != nil {
		return nil, fmt.Errorf("scan routes: %v: %w", err, apperr.ErrStorage)
	}
	routes := make([]Route, 0, len(payloads))
	for _, payload := range payloads {
		var r Route
		if err := json.Unmarshal(payload, &r); err != nil {
			continue
		}
		if r.Status == status {
			routes = append(routes, r)
		}
	}
	s.resolveImages(ctx, routes)
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].CreatedAt.Before(routes[j].CreatedAt)
	})
	return routes, nil
}

// resolveImages swaps stored object keys for time-limited signed URLs.
// External http(s) references pass through untouched; a signing failure
// drops the image rather than failing the listing.
func (s *Service) resolveImages(ctx context.Context, routes []Route) {
	for i := range routes {
		ref := routes[i].ImageRef
		if ref == "" || storage.IsExternalURL(ref) {
			continue
		}
		url, err := s.objects.SignedURL(ctx, ref)
		if err != nil {
			routes[i].ImageRef = ""
			continue
		}
		routes[i].ImageRef = url
	}
}

func (s *Service) dropImage(ctx context.Context, ref string) error {
	if ref == "" || storage.IsExternalURL(ref) {
		return nil
	}
	if err := s.objects.Delete(ctx, ref); err != nil {
		return fmt.Errorf("delete route image: %v: %w", err, apperr.ErrStorage)
	}
	return nil
}

// startTimeLayouts covers what date pickers actually send: full RFC 3339,
// seconds without a zone, and the minutes-only datetime-local format.
var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseStartTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func orderedWaypoints(wps []Waypoint) []Waypoint {
	out := make([]Waypoint, len(wps))
	copy(out, wps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// sortForListing puts upcoming rides first sorted by soonest start,
// past rides after sorted oldest first, and undated routes at the end
// of the upcoming group.
func sortForListing(routes []Route, now time.Time) {
	startAt := func(r Route) (time.Time, bool) {
		return parseStartTime(r.StartTime)
	}
	upcoming := func(r Route) bool {
		t, ok := startAt(r)
		return !ok || !t.Before(now)
	}
	sort.SliceStable(routes, func(i, j int) bool {
		ui, uj := upcoming(routes[i]), upcoming(routes[j])
		if ui != uj {
			return ui
		}
		ti, oki := startAt(routes[i])
		tj, okj := startAt(routes[j])
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return ti.Before(tj)
	})
}
