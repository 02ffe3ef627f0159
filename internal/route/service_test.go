package route

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
	"github.com/abelsonz/rideunited/internal/shared/geo"
	"github.com/abelsonz/rideunited/internal/storage"
)

func newTestService(t *testing.T) (*Service, *kv.Store, *storage.Memory) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kv.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	objects := storage.NewMemory()
	return NewService(store, objects), store, objects
}

func testSubmission() Submission {
	return Submission{
		RouteName:  "Harbor Loop",
		LeaderName: "Sam",
		Waypoints: []Waypoint{
			{ID: "a", Position: geo.Point{Lat: 42.35, Lng: -71.05}, Order: 0},
			{ID: "b", Position: geo.Point{Lat: 42.37, Lng: -71.03}, Order: 1},
		},
	}
}

func TestSubmitStoresPendingRouteWithDerivedStats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.OwnerID = "user-1"
	created, err := svc.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("status = %s, want pending", created.Status)
	}
	if created.Distance <= 0 || created.Duration <= 0 {
		t.Fatalf("stats not derived: distance=%v duration=%v", created.Distance, created.Duration)
	}
	if !strings.HasPrefix(created.MapURL, "https://www.google.com/maps/dir/") {
		t.Fatalf("unexpected map url %q", created.MapURL)
	}

	ids, err := store.IDs(ctx, "routes:pending")
	if err != nil || len(ids) != 1 || ids[0] != created.ID {
		t.Fatalf("pending index = %v (%v)", ids, err)
	}
	owned, err := store.IDs(ctx, "user:user-1:routes")
	if err != nil || len(owned) != 1 || owned[0] != created.ID {
		t.Fatalf("owner index = %v (%v)", owned, err)
	}
}

func TestSubmitIgnoresClientStats(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := geo.PathStats([]geo.Point{
		{Lat: 42.35, Lng: -71.05},
		{Lat: 42.37, Lng: -71.03},
	})
	if created.Distance != want.Distance || created.Duration != want.Duration {
		t.Fatalf("stats = %v/%v, want %v/%v", created.Distance, created.Duration, want.Distance, want.Duration)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]func(*Submission){
		"missing route name":  func(s *Submission) { s.RouteName = " " },
		"missing leader name": func(s *Submission) { s.LeaderName = "" },
		"single waypoint":     func(s *Submission) { s.Waypoints = s.Waypoints[:1] },
	}
	for name, mutate := range cases {
		sub := testSubmission()
		mutate(&sub)
		if _, err := svc.Submit(ctx, sub); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: err = %v, want validation error", name, err)
		}
	}
}

func TestSubmitUploadsImage(t *testing.T) {
	svc, _, objects := newTestService(t)

	sub := testSubmission()
	sub.Image = &ImageUpload{FileName: "loop.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg bytes")}
	created, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.ImageRef == "" || !objects.Has(created.ImageRef) {
		t.Fatalf("image not stored, ref=%q", created.ImageRef)
	}
}

func TestApproveMovesRouteToPublicListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Submit(ctx, testSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, _ := store.IDs(ctx, "routes:pending")
	if len(pending) != 0 {
		t.Fatalf("pending index still has %v", pending)
	}
	approved, _ := store.IDs(ctx, "routes:approved")
	if len(approved) != 1 || approved[0] != created.ID {
		t.Fatalf("approved index = %v", approved)
	}

	listed, err := svc.Approved(ctx)
	if err != nil || len(listed) != 1 || listed[0].Status != StatusApproved {
		t.Fatalf("listing = %v (%v)", listed, err)
	}
}

func TestApproveRequiresPendingStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Submit(ctx, testSubmission())
	if err := svc.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.Approve(ctx, created.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("second approve err = %v, want validation error", err)
	}
	if err := svc.Reject(ctx, created.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("reject after approve err = %v, want validation error", err)
	}
}

func TestApproveUnknownRoute(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.Approve(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRejectDiscardsImage(t *testing.T) {
	svc, store, objects := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.Image = &ImageUpload{FileName: "loop.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg bytes")}
	created, err := svc.Submit(ctx, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Reject(ctx, created.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if objects.Has(created.ImageRef) {
		t.Fatal("rejected route image still stored")
	}

	var after Route
	if found, _ := store.Get(ctx, "route:"+created.ID, &after); !found {
		t.Fatal("route record gone after reject")
	}
	if after.Status != StatusRejected || after.ImageRef != "" {
		t.Fatalf("route after reject = %+v", after)
	}
	pending, _ := store.IDs(ctx, "routes:pending")
	if len(pending) != 0 {
		t.Fatalf("pending index still has %v", pending)
	}
}

func TestUpdateOwnerCanEditPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.OwnerID = "user-1"
	created, _ := svc.Submit(ctx, sub)

	edit := testSubmission()
	edit.RouteName = "Harbor Loop Extended"
	edit.Waypoints = append(edit.Waypoints, Waypoint{ID: "c", Position: geo.Point{Lat: 42.40, Lng: -71.00}, Order: 2})
	updated, err := svc.Update(ctx, created.ID, edit, Caller{UserID: "user-1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RouteName != "Harbor Loop Extended" {
		t.Fatalf("name = %q", updated.RouteName)
	}
	if updated.Distance <= created.Distance {
		t.Fatalf("stats not recomputed: %v <= %v", updated.Distance, created.Distance)
	}
	if updated.OwnerID != "user-1" || updated.Status != StatusPending {
		t.Fatalf("owner/status changed: %+v", updated)
	}
}

func TestUpdateAuthorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.OwnerID = "user-1"
	created, _ := svc.Submit(ctx, sub)

	if _, err := svc.Update(ctx, created.ID, testSubmission(), Caller{UserID: "someone-else"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("stranger edit err = %v, want forbidden", err)
	}

	if err := svc.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Update(ctx, created.ID, testSubmission(), Caller{UserID: "user-1"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("owner edit after review err = %v, want forbidden", err)
	}
	if _, err := svc.Update(ctx, created.ID, testSubmission(), Caller{IsAdmin: true}); err != nil {
		t.Fatalf("admin edit after review: %v", err)
	}
}

func TestUpdateReplacesImage(t *testing.T) {
	svc, _, objects := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.OwnerID = "user-1"
	sub.Image = &ImageUpload{FileName: "old.jpg", ContentType: "image/jpeg", Body: strings.NewReader("old")}
	created, _ := svc.Submit(ctx, sub)

	edit := testSubmission()
	edit.Image = &ImageUpload{FileName: "new.jpg", ContentType: "image/jpeg", Body: strings.NewReader("new")}
	updated, err := svc.Update(ctx, created.ID, edit, Caller{UserID: "user-1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if objects.Has(created.ImageRef) {
		t.Fatal("old image still stored")
	}
	if updated.ImageRef == created.ImageRef || !objects.Has(updated.ImageRef) {
		t.Fatalf("new image not stored, ref=%q", updated.ImageRef)
	}
}

func TestDeleteRemovesRecordImageAndIndex(t *testing.T) {
	svc, store, objects := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.Image = &ImageUpload{FileName: "loop.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}
	created, _ := svc.Submit(ctx, sub)
	if err := svc.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var gone Route
	if found, _ := store.Get(ctx, "route:"+created.ID, &gone); found {
		t.Fatal("route record survived delete")
	}
	if objects.Has(created.ImageRef) {
		t.Fatal("image survived delete")
	}
	approved, _ := store.IDs(ctx, "routes:approved")
	if len(approved) != 0 {
		t.Fatalf("approved index still has %v", approved)
	}

	if err := svc.Delete(ctx, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete err = %v, want not found", err)
	}
}

func TestDeleteOwnedRemovesEverything(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first := testSubmission()
	first.OwnerID = "user-1"
	a, _ := svc.Submit(ctx, first)

	second := testSubmission()
	second.RouteName = "Night Loop"
	second.OwnerID = "user-1"
	b, _ := svc.Submit(ctx, second)
	if err := svc.Approve(ctx, b.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	other := testSubmission()
	other.OwnerID = "user-2"
	keep, _ := svc.Submit(ctx, other)

	if err := svc.DeleteOwned(ctx, "user-1"); err != nil {
		t.Fatalf("delete owned: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		var r Route
		if found, _ := store.Get(ctx, "route:"+id, &r); found {
			t.Fatalf("route %s survived account deletion", id)
		}
	}
	if ids, _ := store.IDs(ctx, "user:user-1:routes"); len(ids) != 0 {
		t.Fatalf("owner index survived: %v", ids)
	}
	var r Route
	if found, _ := store.Get(ctx, "route:"+keep.ID, &r); !found {
		t.Fatal("unrelated user's route was deleted")
	}
}

func TestByOwnerSkipsStaleIndexEntries(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.OwnerID = "user-1"
	created, _ := svc.Submit(ctx, sub)
	if err := store.AppendID(ctx, "user:user-1:routes", "deleted-route"); err != nil {
		t.Fatalf("seed stale id: %v", err)
	}

	routes, err := svc.ByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	if len(routes) != 1 || routes[0].ID != created.ID {
		t.Fatalf("routes = %+v", routes)
	}
}

func TestApprovedListingOrdersUpcomingFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	submitAt := func(name, start string) string {
		sub := testSubmission()
		sub.RouteName = name
		sub.StartTime = start
		created, err := svc.Submit(ctx, sub)
		if err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
		if err := svc.Approve(ctx, created.ID); err != nil {
			t.Fatalf("approve %s: %v", name, err)
		}
		return created.ID
	}

	submitAt("past", now.Add(-48*time.Hour).Format(time.RFC3339))
	submitAt("soon", now.Add(2*time.Hour).Format(time.RFC3339))
	submitAt("later", now.Add(72*time.Hour).Format(time.RFC3339))
	submitAt("undated", "")

	routes, err := svc.Approved(ctx)
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	var names []string
	for _, r := range routes {
		names = append(names, r.RouteName)
	}
	want := []string{"soon", "later", "undated", "past"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestListingsResolveImageRefs(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sub := testSubmission()
	sub.Image = &ImageUpload{FileName: "loop.jpg", ContentType: "image/jpeg", Body: strings.NewReader("jpeg")}
	created, _ := svc.Submit(ctx, sub)
	if err := svc.Approve(ctx, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	ext := testSubmission()
	ext.RouteName = "External"
	extCreated, _ := svc.Submit(ctx, ext)
	var rec Route
	if _, err := store.Get(ctx, "route:"+extCreated.ID, &rec); err != nil {
		t.Fatalf("load: %v", err)
	}
	rec.ImageRef = "https://example.com/pic.jpg"
	if err := store.Set(ctx, "route:"+extCreated.ID, rec); err != nil {
		t.Fatalf("seed external: %v", err)
	}
	if err := svc.Approve(ctx, extCreated.ID); err != nil {
		t.Fatalf("approve external: %v", err)
	}

	routes, err := svc.Approved(ctx)
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	for _, r := range routes {
		switch r.ID {
		case created.ID:
			if !strings.HasPrefix(r.ImageRef, "memory://") {
				t.Fatalf("stored image not signed: %q", r.ImageRef)
			}
		case extCreated.ID:
			if r.ImageRef != "https://example.com/pic.jpg" {
				t.Fatalf("external url rewritten: %q", r.ImageRef)
			}
		}
	}
}

func TestModerationQueuesByStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, _ := svc.Submit(ctx, testSubmission())
	approvedSub := testSubmission()
	approvedSub.RouteName = "Approved Loop"
	a, _ := svc.Submit(ctx, approvedSub)
	if err := svc.Approve(ctx, a.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rejectedSub := testSubmission()
	rejectedSub.RouteName = "Rejected Loop"
	r, _ := svc.Submit(ctx, rejectedSub)
	if err := svc.Reject(ctx, r.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	pending, err := svc.Pending(ctx)
	if err != nil || len(pending) != 1 || pending[0].ID != p.ID {
		t.Fatalf("pending = %+v (%v)", pending, err)
	}
	approved, err := svc.ApprovedForReview(ctx)
	if err != nil || len(approved) != 1 || approved[0].ID != a.ID {
		t.Fatalf("approved = %+v (%v)", approved, err)
	}
}

func TestColorForLookup(t *testing.T) {
	cases := map[string]TagColor{
		"Beginner-Friendly": TagGreen,
		"Scenic":            TagBlue,
		"Skatepark":         TagPurple,
		"Advanced":          TagRed,
		"something new":     TagGreen,
	}
	for label, want := range cases {
		if got := ColorFor(label); got != want {
			t.Errorf("ColorFor(%q) = %s, want %s", label, got, want)
		}
	}

	r := Route{Tags: []string{"Scenic", "Advanced"}}
	tags := r.DecoratedTags()
	if len(tags) != 2 || tags[0].Color != TagBlue || tags[1].Color != TagRed {
		t.Fatalf("decorated tags = %+v", tags)
	}
}
