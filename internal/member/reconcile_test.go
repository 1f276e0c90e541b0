package member

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/model"
)

const (
	testNetworkID = "8056c2e21c000001"
	testMemberID  = "aabbccdd01"
)

type recordedEvent struct {
	networkID string
	event     string
	memberID  string
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) Publish(networkID, event string, m *model.Member) {
	r.events = append(r.events, recordedEvent{networkID: networkID, event: event, memberID: m.ID})
}

func (r *eventRecorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*Service, *mockStore, *mockController, *eventRecorder) {
	t.Helper()
	store := newMockStore()
	store.addNetwork(&model.Network{ID: testNetworkID, AuthorID: "user-1", Name: "test-net"})
	ctrl := newMockController()
	rec := &eventRecorder{}
	svc := NewService(store, ctrl, rec)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc, store, ctrl, rec
}

func TestReconcileMergesDatabaseAndController(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	now := svc.now()

	store.addMember(&model.Member{
		ID:         testMemberID,
		NetworkID:  testNetworkID,
		Name:       "laptop",
		Authorized: true,
	})
	ctrl.addRecord(testNetworkID, controller.MemberRecord{
		ID:              testMemberID,
		NetworkID:       testNetworkID,
		Authorized:      false, // admin view wins
		IPAssignments:   []string{"10.121.15.5"},
		PhysicalAddress: "203.0.113.9/9993",
		LastSeen:        now.Add(-time.Minute).UnixMilli(),
	})

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if roster.Stale {
		t.Error("roster marked stale with controller reachable")
	}
	if len(roster.Members) != 1 {
		t.Fatalf("got %d members, want 1", len(roster.Members))
	}

	m := roster.Members[0]
	if m.Name != "laptop" {
		t.Errorf("name = %q, want database value", m.Name)
	}
	if !m.Authorized {
		t.Error("authorization flipped by controller observation")
	}
	if len(m.IPAssignments) != 1 || m.IPAssignments[0] != "10.121.15.5" {
		t.Errorf("ip assignments = %v, want controller value", m.IPAssignments)
	}
	if !m.Online {
		t.Error("member seen a minute ago should be online")
	}

	stored, err := store.GetMember(testNetworkID, testMemberID)
	if err != nil {
		t.Fatalf("GetMember() error = %v", err)
	}
	if stored.PhysicalAddress != "203.0.113.9/9993" {
		t.Error("observations not persisted")
	}
}

func TestReconcileAdoptsControllerOnlyMember(t *testing.T) {
	svc, store, ctrl, events := newTestService(t)

	ctrl.addRecord(testNetworkID, controller.MemberRecord{
		ID:         testMemberID,
		NetworkID:  testNetworkID,
		Authorized: true,
		LastSeen:   svc.now().Add(-time.Second).UnixMilli(),
	})

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(roster.Members) != 1 {
		t.Fatalf("got %d members, want 1", len(roster.Members))
	}
	if _, err := store.GetMember(testNetworkID, testMemberID); err != nil {
		t.Errorf("adopted member not persisted: %v", err)
	}
	if events.count(model.EventMemberJoined) != 1 {
		t.Errorf("joined events = %d, want 1", events.count(model.EventMemberJoined))
	}
	if events.count(model.EventMemberOnline) != 1 {
		t.Errorf("online events = %d, want 1", events.count(model.EventMemberOnline))
	}
}

func TestReconcileSuppressesPermanentlyDeleted(t *testing.T) {
	svc, store, ctrl, events := newTestService(t)

	store.addMember(&model.Member{
		ID:                 testMemberID,
		NetworkID:          testNetworkID,
		Deleted:            true,
		PermanentlyDeleted: true,
	})
	ctrl.addRecord(testNetworkID, controller.MemberRecord{
		ID:        testMemberID,
		NetworkID: testNetworkID,
	})

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(roster.Members) != 0 || len(roster.Zombies) != 0 {
		t.Errorf("terminal member surfaced: members=%d zombies=%d", len(roster.Members), len(roster.Zombies))
	}
	if len(events.events) != 0 {
		t.Errorf("events published for terminal member: %v", events.events)
	}

	stored, _ := store.GetMember(testNetworkID, testMemberID)
	if !stored.PermanentlyDeleted {
		t.Error("terminal flag lost during reconciliation")
	}
}

func TestReconcileSurfacesZombies(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)

	store.addMember(&model.Member{
		ID:        testMemberID,
		NetworkID: testNetworkID,
		Name:      "ghost",
		Deleted:   true,
	})
	ctrl.addRecord(testNetworkID, controller.MemberRecord{
		ID:        testMemberID,
		NetworkID: testNetworkID,
		LastSeen:  svc.now().Add(-time.Minute).UnixMilli(),
	})

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(roster.Members) != 0 {
		t.Errorf("stashed member listed as active: %v", roster.Members)
	}
	if len(roster.Zombies) != 1 || roster.Zombies[0].ID != testMemberID {
		t.Fatalf("zombies = %v, want the stashed member", roster.Zombies)
	}
	if !roster.Zombies[0].Online {
		t.Error("zombie connectivity observation dropped")
	}
}

func TestReconcileDegradesWhenControllerUnreachable(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)

	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Name: "laptop"})
	store.addMember(&model.Member{ID: "aabbccdd02", NetworkID: testNetworkID, Deleted: true})
	ctrl.listErr = errors.New("connection refused")

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v, want degraded roster", err)
	}
	if !roster.Stale {
		t.Error("degraded roster not marked stale")
	}
	if len(roster.Members) != 1 || roster.Members[0].ID != testMemberID {
		t.Errorf("members = %v, want the active database member", roster.Members)
	}
	// Zombies need a controller listing to be confirmed; a stale
	// roster carries none even though a stashed row exists.
	if len(roster.Zombies) != 0 {
		t.Errorf("stale roster reported zombies: %v", roster.Zombies)
	}
}

func TestReconcileMarksVanishedMembersOffline(t *testing.T) {
	svc, store, _, events := newTestService(t)

	store.addMember(&model.Member{
		ID:        testMemberID,
		NetworkID: testNetworkID,
		Online:    true,
	})

	roster, err := svc.Reconcile(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(roster.Members) != 1 || roster.Members[0].Online {
		t.Errorf("members = %+v, want one offline member", roster.Members)
	}
	if events.count(model.EventMemberOffline) != 1 {
		t.Errorf("offline events = %d, want 1", events.count(model.EventMemberOffline))
	}
}

func TestReconcileRejectsBadNetworkID(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Reconcile(context.Background(), "not-a-network"); !errors.Is(err, ErrInvalidNetworkID) {
		t.Errorf("Reconcile() error = %v, want ErrInvalidNetworkID", err)
	}
}

// TestReconcileRosterInvariants drives reconciliation with arbitrary
// combinations of database state and controller listings and checks
// the partition rules hold in every case.
func TestReconcileRosterInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMockStore()
		store.addNetwork(&model.Network{ID: testNetworkID, AuthorID: "user-1"})
		ctrl := newMockController()
		svc := NewService(store, ctrl, nil)
		now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }

		const pool = 8
		states := make(map[string]int, pool)
		inController := make(map[string]bool, pool)
		for i := 0; i < pool; i++ {
			id := fmt.Sprintf("aabbccdd%02d", i)
			// 0 unknown, 1 active, 2 stashed, 3 terminal
			state := rapid.IntRange(0, 3).Draw(t, "state")
			states[id] = state
			if state > 0 {
				store.addMember(&model.Member{
					ID:                 id,
					NetworkID:          testNetworkID,
					Deleted:            state >= 2,
					PermanentlyDeleted: state == 3,
				})
			}
			if rapid.Bool().Draw(t, "listed") {
				inController[id] = true
				ctrl.addRecord(testNetworkID, controller.MemberRecord{
					ID:        id,
					NetworkID: testNetworkID,
					LastSeen:  now.Add(-time.Minute).UnixMilli(),
				})
			}
		}

		roster, err := svc.Reconcile(context.Background(), testNetworkID)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}

		members := make(map[string]bool)
		for _, m := range roster.Members {
			if members[m.ID] {
				t.Fatalf("member %s listed twice", m.ID)
			}
			members[m.ID] = true
		}
		for _, z := range roster.Zombies {
			if members[z.ID] {
				t.Fatalf("member %s is both active and zombie", z.ID)
			}
		}

		for id, state := range states {
			inMembers := members[id]
			inZombies := false
			for _, z := range roster.Zombies {
				if z.ID == id {
					inZombies = true
				}
			}

			switch state {
			case 3:
				if inMembers || inZombies {
					t.Fatalf("permanently deleted %s surfaced", id)
				}
				if m, err := store.GetMember(testNetworkID, id); err != nil || !m.PermanentlyDeleted {
					t.Fatalf("terminal row for %s mutated: %v", id, err)
				}
			case 2:
				if inMembers {
					t.Fatalf("stashed %s listed active", id)
				}
				if inZombies != inController[id] {
					t.Fatalf("zombie %s: listed=%v controller=%v", id, inZombies, inController[id])
				}
			case 1:
				if !inMembers {
					t.Fatalf("active %s missing from roster", id)
				}
			case 0:
				if inMembers != inController[id] {
					t.Fatalf("unknown %s: adopted=%v controller=%v", id, inMembers, inController[id])
				}
				if inController[id] {
					if _, err := store.GetMember(testNetworkID, id); err != nil {
						t.Fatalf("adopted %s not persisted: %v", id, err)
					}
				}
			}
		}
	})
}
