package api

import (
	"sort"
	"strings"

	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// mockStorage is a simple in-memory storage for testing
type mockStorage struct {
	networks  map[string]*model.Network
	members   map[string]*model.Member
	notations map[string]*model.Notation
	attached  map[string][]string // notationID -> member keys
	users     map[string]*model.User
	orgs      map[string]*model.Organization
	roles     map[string]model.OrganizationRole // orgID/userID
	webhooks  map[string]*model.Webhook
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		networks:  make(map[string]*model.Network),
		members:   make(map[string]*model.Member),
		notations: make(map[string]*model.Notation),
		attached:  make(map[string][]string),
		users:     make(map[string]*model.User),
		orgs:      make(map[string]*model.Organization),
		roles:     make(map[string]model.OrganizationRole),
		webhooks:  make(map[string]*model.Webhook),
	}
}

func memberKey(networkID, memberID string) string {
	return networkID + "/" + memberID
}

// Network storage

func (m *mockStorage) ListNetworks(filter *model.NetworkFilter) ([]model.Network, error) {
	result := make([]model.Network, 0, len(m.networks))
	for _, n := range m.networks {
		if filter != nil {
			if filter.AuthorID != "" && n.AuthorID != filter.AuthorID {
				continue
			}
			if filter.OrganizationID != "" && n.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.Name != "" && !strings.Contains(n.Name, filter.Name) {
				continue
			}
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStorage) GetNetwork(id string) (*model.Network, error) {
	if n, ok := m.networks[id]; ok {
		clone := *n
		return &clone, nil
	}
	return nil, storage.ErrNetworkNotFound
}

func (m *mockStorage) CreateNetwork(n *model.Network) error {
	clone := *n
	m.networks[n.ID] = &clone
	return nil
}

func (m *mockStorage) UpdateNetwork(n *model.Network) error {
	if _, ok := m.networks[n.ID]; !ok {
		return storage.ErrNetworkNotFound
	}
	clone := *n
	m.networks[n.ID] = &clone
	return nil
}

func (m *mockStorage) DeleteNetwork(id string) error {
	if _, ok := m.networks[id]; !ok {
		return storage.ErrNetworkNotFound
	}
	delete(m.networks, id)
	for key := range m.members {
		if strings.HasPrefix(key, id+"/") {
			delete(m.members, key)
		}
	}
	return nil
}

// Member storage

func (m *mockStorage) ListMembers(networkID string, filter *model.MemberFilter) ([]model.Member, error) {
	var result []model.Member
	for key, mem := range m.members {
		if !strings.HasPrefix(key, networkID+"/") {
			continue
		}
		if filter != nil {
			if filter.OnlyStashed {
				if mem.State() != model.StateStashed {
					continue
				}
			} else {
				if mem.State() == model.StateStashed && !filter.IncludeStashed {
					continue
				}
				if mem.State() == model.StatePermanentlyDeleted && !filter.IncludeTerminal {
					continue
				}
				if filter.AuthorizedOnly && !mem.Authorized {
					continue
				}
			}
		}
		result = append(result, *mem)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStorage) GetMember(networkID, memberID string) (*model.Member, error) {
	if mem, ok := m.members[memberKey(networkID, memberID)]; ok {
		clone := *mem
		return &clone, nil
	}
	return nil, storage.ErrMemberNotFound
}

func (m *mockStorage) CreateMember(mem *model.Member) error {
	clone := *mem
	m.members[memberKey(mem.NetworkID, mem.ID)] = &clone
	return nil
}

func (m *mockStorage) UpdateMember(mem *model.Member) error {
	key := memberKey(mem.NetworkID, mem.ID)
	if _, ok := m.members[key]; !ok {
		return storage.ErrMemberNotFound
	}
	clone := *mem
	m.members[key] = &clone
	return nil
}

func (m *mockStorage) DeleteMember(networkID, memberID string) error {
	key := memberKey(networkID, memberID)
	if _, ok := m.members[key]; !ok {
		return storage.ErrMemberNotFound
	}
	delete(m.members, key)
	return nil
}

// Notation storage

func (m *mockStorage) ListNotations(networkID string) ([]model.Notation, error) {
	var result []model.Notation
	for _, n := range m.notations {
		if n.NetworkID == networkID {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockStorage) GetNotationByName(networkID, name string) (*model.Notation, error) {
	for _, n := range m.notations {
		if n.NetworkID == networkID && n.Name == name {
			clone := *n
			return &clone, nil
		}
	}
	return nil, storage.ErrNotationNotFound
}

func (m *mockStorage) CreateNotation(n *model.Notation) error {
	clone := *n
	m.notations[n.ID] = &clone
	return nil
}

func (m *mockStorage) AttachNotation(notationID, memberID, networkID string) error {
	key := memberKey(networkID, memberID)
	for _, existing := range m.attached[notationID] {
		if existing == key {
			return nil
		}
	}
	m.attached[notationID] = append(m.attached[notationID], key)
	return nil
}

func (m *mockStorage) DetachNotation(notationID, memberID, networkID string) error {
	key := memberKey(networkID, memberID)
	kept := m.attached[notationID][:0]
	for _, existing := range m.attached[notationID] {
		if existing != key {
			kept = append(kept, existing)
		}
	}
	m.attached[notationID] = kept
	return nil
}

func (m *mockStorage) ListMemberNotations(networkID, memberID string) ([]model.Notation, error) {
	key := memberKey(networkID, memberID)
	var result []model.Notation
	for notationID, keys := range m.attached {
		for _, k := range keys {
			if k == key {
				result = append(result, *m.notations[notationID])
			}
		}
	}
	return result, nil
}

func (m *mockStorage) GCNotations(networkID string) (int, error) {
	removed := 0
	for id, n := range m.notations {
		if n.NetworkID == networkID && len(m.attached[id]) == 0 {
			delete(m.notations, id)
			delete(m.attached, id)
			removed++
		}
	}
	return removed, nil
}

// User storage

func (m *mockStorage) CountUsers() (int, error) { return len(m.users), nil }

func (m *mockStorage) GetUser(id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockStorage) GetUserByUsername(username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockStorage) CreateUser(u *model.User) error {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return storage.ErrUsernameTaken
		}
	}
	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *mockStorage) UpdateUser(u *model.User) error {
	clone := *u
	m.users[u.ID] = &clone
	return nil
}

// Organization storage

func (m *mockStorage) GetOrganization(id string) (*model.Organization, error) {
	if o, ok := m.orgs[id]; ok {
		clone := *o
		return &clone, nil
	}
	return nil, storage.ErrOrganizationNotFound
}

func (m *mockStorage) CreateOrganization(o *model.Organization) error {
	clone := *o
	m.orgs[o.ID] = &clone
	return nil
}

func (m *mockStorage) UpdateOrganization(o *model.Organization) error {
	clone := *o
	m.orgs[o.ID] = &clone
	return nil
}

func (m *mockStorage) AddOrganizationMember(om *model.OrganizationMember) error {
	m.roles[om.OrganizationID+"/"+om.UserID] = om.Role
	return nil
}

func (m *mockStorage) GetOrganizationRole(orgID, userID string) (model.OrganizationRole, error) {
	if role, ok := m.roles[orgID+"/"+userID]; ok {
		return role, nil
	}
	return "", storage.ErrOrganizationNotFound
}

func (m *mockStorage) ListUserOrganizations(userID string) ([]model.Organization, error) {
	var result []model.Organization
	for key := range m.roles {
		parts := strings.SplitN(key, "/", 2)
		if len(parts) == 2 && parts[1] == userID {
			if o, ok := m.orgs[parts[0]]; ok {
				result = append(result, *o)
			}
		}
	}
	return result, nil
}

// Webhook storage

func (m *mockStorage) ListWebhooks(networkID string) ([]model.Webhook, error) {
	var result []model.Webhook
	for _, h := range m.webhooks {
		if h.NetworkID == networkID {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStorage) GetWebhook(id string) (*model.Webhook, error) {
	if h, ok := m.webhooks[id]; ok {
		clone := *h
		return &clone, nil
	}
	return nil, storage.ErrWebhookNotFound
}

func (m *mockStorage) CreateWebhook(h *model.Webhook) error {
	clone := *h
	m.webhooks[h.ID] = &clone
	return nil
}

func (m *mockStorage) UpdateWebhook(h *model.Webhook) error {
	if _, ok := m.webhooks[h.ID]; !ok {
		return storage.ErrWebhookNotFound
	}
	clone := *h
	m.webhooks[h.ID] = &clone
	return nil
}

func (m *mockStorage) DeleteWebhook(id string) error {
	if _, ok := m.webhooks[id]; !ok {
		return storage.ErrWebhookNotFound
	}
	delete(m.webhooks, id)
	return nil
}

func (m *mockStorage) Close() error { return nil }
