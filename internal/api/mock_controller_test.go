package api

import (
	"context"

	"github.com/martinsuchenak/ztnetd/internal/controller"
)

// mockController is an in-memory controller for handler tests.
type mockController struct {
	members map[string][]controller.MemberRecord
	nextID  string

	createErr error
	updateErr error
}

func newMockController() *mockController {
	return &mockController{
		members: make(map[string][]controller.MemberRecord),
		nextID:  "8056c2e21c000001",
	}
}

func (c *mockController) Status(context.Context) (*controller.NodeStatus, error) {
	return &controller.NodeStatus{Address: "8056c2e21c", Online: true, Version: "1.14.0"}, nil
}

func (c *mockController) GetNetwork(_ context.Context, networkID string) (*controller.NetworkRecord, error) {
	return &controller.NetworkRecord{ID: networkID}, nil
}

func (c *mockController) CreateNetwork(_ context.Context, record *controller.NetworkRecord) (*controller.NetworkRecord, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	created := *record
	created.ID = c.nextID
	return &created, nil
}

func (c *mockController) UpdateNetwork(_ context.Context, networkID string, record *controller.NetworkRecord) (*controller.NetworkRecord, error) {
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	updated := *record
	updated.ID = networkID
	return &updated, nil
}

func (c *mockController) DeleteNetwork(context.Context, string) error { return nil }

func (c *mockController) ListNetworkMembers(_ context.Context, networkID string) ([]controller.MemberRecord, error) {
	return append([]controller.MemberRecord(nil), c.members[networkID]...), nil
}

func (c *mockController) GetMember(_ context.Context, networkID, memberID string) (*controller.MemberRecord, error) {
	for _, rec := range c.members[networkID] {
		if rec.ID == memberID {
			clone := rec
			return &clone, nil
		}
	}
	return nil, controller.ErrNotFound
}

func (c *mockController) UpdateMember(_ context.Context, networkID, memberID string, _ *controller.MemberUpdateRecord) (*controller.MemberRecord, error) {
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	return &controller.MemberRecord{ID: memberID, NetworkID: networkID}, nil
}

func (c *mockController) DeleteMember(context.Context, string, string) error { return nil }
