package member

import (
	"context"
	"sort"
	"strings"

	"github.com/martinsuchenak/ztnetd/internal/controller"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

type mockStore struct {
	networks map[string]*model.Network
	members  map[string]*model.Member
	users    map[string]*model.User
	orgs     map[string]*model.Organization

	updateErr error
	createErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		networks: make(map[string]*model.Network),
		members:  make(map[string]*model.Member),
		users:    make(map[string]*model.User),
		orgs:     make(map[string]*model.Organization),
	}
}

func memberKey(networkID, memberID string) string {
	return networkID + "/" + memberID
}

func (s *mockStore) addNetwork(n *model.Network) {
	cp := *n
	s.networks[n.ID] = &cp
}

func (s *mockStore) addMember(m *model.Member) {
	cp := *m
	s.members[memberKey(m.NetworkID, m.ID)] = &cp
}

func (s *mockStore) ListNetworks(filter *model.NetworkFilter) ([]model.Network, error) {
	var out []model.Network
	for _, n := range s.networks {
		if filter != nil {
			if filter.AuthorID != "" && n.AuthorID != filter.AuthorID {
				continue
			}
			if filter.OrganizationID != "" && n.OrganizationID != filter.OrganizationID {
				continue
			}
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) GetNetwork(id string) (*model.Network, error) {
	n, ok := s.networks[id]
	if !ok {
		return nil, storage.ErrNetworkNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *mockStore) CreateNetwork(n *model.Network) error { s.addNetwork(n); return nil }
func (s *mockStore) UpdateNetwork(n *model.Network) error { s.addNetwork(n); return nil }

func (s *mockStore) DeleteNetwork(id string) error {
	delete(s.networks, id)
	return nil
}

func (s *mockStore) ListMembers(networkID string, filter *model.MemberFilter) ([]model.Member, error) {
	var out []model.Member
	for key, m := range s.members {
		if !strings.HasPrefix(key, networkID+"/") {
			continue
		}
		if filter != nil {
			if filter.OnlyStashed {
				if m.State() != model.StateStashed {
					continue
				}
			} else {
				if m.State() == model.StateStashed && !filter.IncludeStashed {
					continue
				}
				if m.State() == model.StatePermanentlyDeleted && !filter.IncludeTerminal {
					continue
				}
				if filter.AuthorizedOnly && !m.Authorized {
					continue
				}
			}
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) GetMember(networkID, memberID string) (*model.Member, error) {
	m, ok := s.members[memberKey(networkID, memberID)]
	if !ok {
		return nil, storage.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *mockStore) CreateMember(m *model.Member) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.addMember(m)
	return nil
}

func (s *mockStore) UpdateMember(m *model.Member) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.members[memberKey(m.NetworkID, m.ID)]; !ok {
		return storage.ErrMemberNotFound
	}
	s.addMember(m)
	return nil
}

func (s *mockStore) DeleteMember(networkID, memberID string) error {
	key := memberKey(networkID, memberID)
	if _, ok := s.members[key]; !ok {
		return storage.ErrMemberNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *mockStore) CountUsers() (int, error) { return len(s.users), nil }

func (s *mockStore) GetUser(id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *mockStore) GetUserByUsername(username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *mockStore) CreateUser(u *model.User) error {
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *mockStore) UpdateUser(u *model.User) error {
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *mockStore) GetOrganization(id string) (*model.Organization, error) {
	o, ok := s.orgs[id]
	if !ok {
		return nil, storage.ErrOrganizationNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *mockStore) CreateOrganization(o *model.Organization) error {
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *mockStore) UpdateOrganization(o *model.Organization) error {
	cp := *o
	s.orgs[o.ID] = &cp
	return nil
}

func (s *mockStore) AddOrganizationMember(*model.OrganizationMember) error { return nil }

func (s *mockStore) GetOrganizationRole(string, string) (model.OrganizationRole, error) {
	return model.RoleAdmin, nil
}

func (s *mockStore) ListUserOrganizations(string) ([]model.Organization, error) {
	return nil, nil
}

// mockController records calls and serves canned member records.
type mockController struct {
	members map[string][]controller.MemberRecord // networkID -> records

	listErr   error
	updateErr error
	deleteErr error

	updates []ctrlUpdate
	deletes []string
}

type ctrlUpdate struct {
	networkID string
	memberID  string
	update    controller.MemberUpdateRecord
}

func newMockController() *mockController {
	return &mockController{members: make(map[string][]controller.MemberRecord)}
}

func (c *mockController) addRecord(networkID string, rec controller.MemberRecord) {
	c.members[networkID] = append(c.members[networkID], rec)
}

func (c *mockController) Status(context.Context) (*controller.NodeStatus, error) {
	return &controller.NodeStatus{Address: "deadbeef01", Online: true}, nil
}

func (c *mockController) GetNetwork(_ context.Context, networkID string) (*controller.NetworkRecord, error) {
	return &controller.NetworkRecord{ID: networkID}, nil
}

func (c *mockController) CreateNetwork(_ context.Context, record *controller.NetworkRecord) (*controller.NetworkRecord, error) {
	return record, nil
}

func (c *mockController) UpdateNetwork(_ context.Context, networkID string, record *controller.NetworkRecord) (*controller.NetworkRecord, error) {
	return record, nil
}

func (c *mockController) DeleteNetwork(context.Context, string) error { return nil }

func (c *mockController) ListNetworkMembers(_ context.Context, networkID string) ([]controller.MemberRecord, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]controller.MemberRecord(nil), c.members[networkID]...), nil
}

func (c *mockController) GetMember(_ context.Context, networkID, memberID string) (*controller.MemberRecord, error) {
	for _, rec := range c.members[networkID] {
		if rec.ID == memberID {
			cp := rec
			return &cp, nil
		}
	}
	return nil, controller.ErrNotFound
}

func (c *mockController) UpdateMember(_ context.Context, networkID, memberID string, update *controller.MemberUpdateRecord) (*controller.MemberRecord, error) {
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	c.updates = append(c.updates, ctrlUpdate{networkID: networkID, memberID: memberID, update: *update})
	return &controller.MemberRecord{ID: memberID, NetworkID: networkID}, nil
}

func (c *mockController) DeleteMember(_ context.Context, networkID, memberID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletes = append(c.deletes, memberKey(networkID, memberID))
	return nil
}
