package member

import (
	"context"
	"errors"
	"testing"

	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

func TestAddCreatesMember(t *testing.T) {
	svc, store, _, events := newTestService(t)

	m, err := svc.Add(context.Background(), testNetworkID, testMemberID, "printer")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if m.Name != "printer" || m.Authorized {
		t.Errorf("got %+v, want unauthorized member named printer", m)
	}
	if _, err := store.GetMember(testNetworkID, testMemberID); err != nil {
		t.Errorf("member not persisted: %v", err)
	}
	if events.count(model.EventMemberJoined) != 1 {
		t.Errorf("joined events = %d, want 1", events.count(model.EventMemberJoined))
	}
}

func TestAddRestoresStashedMember(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.addMember(&model.Member{
		ID:        testMemberID,
		NetworkID: testNetworkID,
		Name:      "old-name",
		Deleted:   true,
	})

	m, err := svc.Add(context.Background(), testNetworkID, testMemberID, "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if m.State() != model.StateActive {
		t.Errorf("state = %v, want active", m.State())
	}
	if m.Name != "old-name" {
		t.Errorf("name = %q, restore should keep existing name", m.Name)
	}
}

func TestAddRejectsPermanentlyDeleted(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.addMember(&model.Member{
		ID:                 testMemberID,
		NetworkID:          testNetworkID,
		Deleted:            true,
		PermanentlyDeleted: true,
	})

	if _, err := svc.Add(context.Background(), testNetworkID, testMemberID, ""); !errors.Is(err, ErrPermanentlyDeleted) {
		t.Errorf("Add() error = %v, want ErrPermanentlyDeleted", err)
	}
}

func TestAddValidatesIdentifiers(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Add(context.Background(), testNetworkID, "ZZZ", ""); !errors.Is(err, ErrInvalidMemberID) {
		t.Errorf("Add() error = %v, want ErrInvalidMemberID", err)
	}
	if _, err := svc.Add(context.Background(), "short", testMemberID, ""); !errors.Is(err, ErrInvalidNetworkID) {
		t.Errorf("Add() error = %v, want ErrInvalidNetworkID", err)
	}
}

func TestAddIsIdempotentForActiveMember(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Name: "laptop"})

	m, err := svc.Add(context.Background(), testNetworkID, testMemberID, "other")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if m.Name != "laptop" {
		t.Errorf("re-adding an active member must not rename it, got %q", m.Name)
	}
}

func TestUpdatePushesControllerFirst(t *testing.T) {
	svc, store, ctrl, events := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID})

	authorized := true
	m, err := svc.Update(context.Background(), testNetworkID, testMemberID, &model.MemberUpdate{Authorized: &authorized})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !m.Authorized {
		t.Error("authorization not applied")
	}
	if len(ctrl.updates) != 1 {
		t.Fatalf("controller updates = %d, want 1", len(ctrl.updates))
	}
	if got := ctrl.updates[0].update.Authorized; got == nil || !*got {
		t.Error("authorization not pushed to controller")
	}
	if events.count(model.EventMemberAuthorized) != 1 {
		t.Errorf("authorized events = %d, want 1", events.count(model.EventMemberAuthorized))
	}
}

func TestUpdateControllerRejectionSurfaces(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID})
	ctrl.updateErr = errors.New("500 internal server error")

	authorized := true
	_, err := svc.Update(context.Background(), testNetworkID, testMemberID, &model.MemberUpdate{Authorized: &authorized})
	if !errors.Is(err, ErrMemberNotJoined) {
		t.Fatalf("Update() error = %v, want ErrMemberNotJoined", err)
	}

	stored, _ := store.GetMember(testNetworkID, testMemberID)
	if stored.Authorized {
		t.Error("database changed although controller rejected the update")
	}
}

func TestUpdateLocalMetadataSkipsController(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID})
	ctrl.updateErr = errors.New("unreachable")

	desc := "rack 3, shelf 2"
	m, err := svc.Update(context.Background(), testNetworkID, testMemberID, &model.MemberUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("Update() error = %v, description is local only", err)
	}
	if m.Description != desc {
		t.Errorf("description = %q, want %q", m.Description, desc)
	}
}

func TestStashDeauthorizesAndSoftDeletes(t *testing.T) {
	svc, store, ctrl, events := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Authorized: true})

	if err := svc.Stash(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Stash() error = %v", err)
	}

	stored, _ := store.GetMember(testNetworkID, testMemberID)
	if stored.State() != model.StateStashed {
		t.Errorf("state = %v, want stashed", stored.State())
	}
	if stored.Authorized {
		t.Error("stashed member still authorized")
	}
	if len(ctrl.updates) != 1 {
		t.Fatalf("controller updates = %d, want de-authorization push", len(ctrl.updates))
	}
	if got := ctrl.updates[0].update.Authorized; got == nil || *got {
		t.Error("controller was not told to de-authorize")
	}
	if events.count(model.EventMemberDeleted) != 1 {
		t.Errorf("deleted events = %d, want 1", events.count(model.EventMemberDeleted))
	}
}

func TestStashClearsAssignments(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{
		ID:            testMemberID,
		NetworkID:     testNetworkID,
		Authorized:    true,
		IPAssignments: []string{"10.0.0.5"},
		Tags:          [][2]uint32{{100, 1}},
		Capabilities:  []uint32{7},
	})

	if err := svc.Stash(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Stash() error = %v", err)
	}

	if len(ctrl.updates) != 1 {
		t.Fatalf("controller updates = %d, want 1", len(ctrl.updates))
	}
	push := ctrl.updates[0].update
	if push.IPAssignments == nil || len(*push.IPAssignments) != 0 {
		t.Errorf("controller push IPAssignments = %v, want empty set", push.IPAssignments)
	}
	if push.Tags == nil || len(*push.Tags) != 0 {
		t.Errorf("controller push Tags = %v, want empty set", push.Tags)
	}
	if push.Capabilities == nil || len(*push.Capabilities) != 0 {
		t.Errorf("controller push Capabilities = %v, want empty set", push.Capabilities)
	}

	stored, _ := store.GetMember(testNetworkID, testMemberID)
	if len(stored.IPAssignments) != 0 || len(stored.Tags) != 0 || len(stored.Capabilities) != 0 {
		t.Errorf("stashed row kept assignments: ips=%v tags=%v caps=%v",
			stored.IPAssignments, stored.Tags, stored.Capabilities)
	}
}

func TestStashToleratesControllerFailure(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Authorized: true})
	ctrl.updateErr = errors.New("connection refused")

	if err := svc.Stash(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Stash() error = %v, controller failure must be tolerated", err)
	}
	stored, _ := store.GetMember(testNetworkID, testMemberID)
	if stored.State() != model.StateStashed {
		t.Error("member not stashed after controller failure")
	}
}

func TestStashIsIdempotent(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Deleted: true})

	if err := svc.Stash(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Stash() error = %v", err)
	}
	if len(ctrl.updates) != 0 {
		t.Error("re-stashing pushed to controller")
	}
}

func TestDeleteActiveMemberRemovesRow(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID})

	if err := svc.Delete(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetMember(testNetworkID, testMemberID); !errors.Is(err, storage.ErrMemberNotFound) {
		t.Errorf("row still present after delete: %v", err)
	}
	if len(ctrl.deletes) != 1 {
		t.Errorf("controller deletes = %d, want 1", len(ctrl.deletes))
	}
}

func TestDeleteStashedMemberBecomesTerminal(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID, Deleted: true})
	ctrl.deleteErr = errors.New("connection refused")

	if err := svc.Delete(context.Background(), testNetworkID, testMemberID); err != nil {
		t.Fatalf("Delete() error = %v, controller failure must be tolerated here", err)
	}

	stored, err := store.GetMember(testNetworkID, testMemberID)
	if err != nil {
		t.Fatalf("terminal row must be kept: %v", err)
	}
	if stored.State() != model.StatePermanentlyDeleted {
		t.Errorf("state = %v, want permanently deleted", stored.State())
	}
}

func TestDeleteActiveSurfacesControllerError(t *testing.T) {
	svc, store, ctrl, _ := newTestService(t)
	store.addMember(&model.Member{ID: testMemberID, NetworkID: testNetworkID})
	ctrl.deleteErr = errors.New("500 internal server error")

	if err := svc.Delete(context.Background(), testNetworkID, testMemberID); !errors.Is(err, ErrMemberNotJoined) {
		t.Fatalf("Delete() error = %v, want ErrMemberNotJoined", err)
	}
	if _, err := store.GetMember(testNetworkID, testMemberID); err != nil {
		t.Error("row deleted although controller delete failed")
	}
}

func TestBulkDeleteStashed(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.addMember(&model.Member{ID: "aabbccdd01", NetworkID: testNetworkID, Deleted: true})
	store.addMember(&model.Member{ID: "aabbccdd02", NetworkID: testNetworkID, Deleted: true})
	store.addMember(&model.Member{ID: "aabbccdd03", NetworkID: testNetworkID})

	n, err := svc.BulkDeleteStashed(context.Background(), testNetworkID)
	if err != nil {
		t.Fatalf("BulkDeleteStashed() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d members, want 2", n)
	}

	active, _ := store.GetMember(testNetworkID, "aabbccdd03")
	if active.State() != model.StateActive {
		t.Error("active member touched by bulk delete")
	}

	// Second run finds nothing to do.
	n, err = svc.BulkDeleteStashed(context.Background(), testNetworkID)
	if err != nil || n != 0 {
		t.Errorf("second run = (%d, %v), want (0, nil)", n, err)
	}
}
