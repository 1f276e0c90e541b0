package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// LocalClient speaks to the ZeroTier node service on this machine
// (default 127.0.0.1:9993) using the X-ZT1-Auth token from
// authtoken.secret.
type LocalClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Client = (*LocalClient)(nil)

// NewLocalClient builds a client for the local node service.
func NewLocalClient(baseURL, token string) *LocalClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:9993"
	}
	return &LocalClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status returns the local node identity.
func (c *LocalClient) Status(ctx context.Context) (*NodeStatus, error) {
	var raw struct {
		Address string `json:"address"`
		Online  bool   `json:"online"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &raw); err != nil {
		return nil, err
	}
	return &NodeStatus{Address: raw.Address, Online: raw.Online, Version: raw.Version}, nil
}

// GetNetwork fetches a controller network.
func (c *LocalClient) GetNetwork(ctx context.Context, networkID string) (*NetworkRecord, error) {
	var record NetworkRecord
	if err := c.do(ctx, http.MethodGet, "/controller/network/"+networkID, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateNetwork asks the controller to allocate a new network ID. The
// node service derives the ID from its own address when the path ends
// in the six-underscore placeholder.
func (c *LocalClient) CreateNetwork(ctx context.Context, record *NetworkRecord) (*NetworkRecord, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving controller address: %w", err)
	}

	var created NetworkRecord
	path := "/controller/network/" + status.Address + "______"
	if err := c.do(ctx, http.MethodPost, path, record, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateNetwork pushes configuration to the controller.
func (c *LocalClient) UpdateNetwork(ctx context.Context, networkID string, record *NetworkRecord) (*NetworkRecord, error) {
	var updated NetworkRecord
	if err := c.do(ctx, http.MethodPost, "/controller/network/"+networkID, record, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteNetwork removes a network from the controller.
func (c *LocalClient) DeleteNetwork(ctx context.Context, networkID string) error {
	return c.do(ctx, http.MethodDelete, "/controller/network/"+networkID, nil, nil)
}

// ListNetworkMembers lists all members the controller knows for a
// network. The node service only returns an id→revision map, so each
// member record is fetched individually.
func (c *LocalClient) ListNetworkMembers(ctx context.Context, networkID string) ([]MemberRecord, error) {
	revisions := map[string]int64{}
	if err := c.do(ctx, http.MethodGet, "/controller/network/"+networkID+"/member", nil, &revisions); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(revisions))
	for id := range revisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	members := make([]MemberRecord, 0, len(ids))
	for _, id := range ids {
		record, err := c.GetMember(ctx, networkID, id)
		if err != nil {
			// A member can disappear between the listing and the fetch.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		members = append(members, *record)
	}
	return members, nil
}

// GetMember fetches one controller member record.
func (c *LocalClient) GetMember(ctx context.Context, networkID, memberID string) (*MemberRecord, error) {
	var record MemberRecord
	path := "/controller/network/" + networkID + "/member/" + memberID
	if err := c.do(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	record.ID = memberID
	record.NetworkID = networkID
	c.fillPeerInfo(ctx, &record)
	return &record, nil
}

// UpdateMember pushes member fields to the controller.
func (c *LocalClient) UpdateMember(ctx context.Context, networkID, memberID string, update *MemberUpdateRecord) (*MemberRecord, error) {
	var record MemberRecord
	path := "/controller/network/" + networkID + "/member/" + memberID
	if err := c.do(ctx, http.MethodPost, path, update, &record); err != nil {
		return nil, err
	}
	record.ID = memberID
	record.NetworkID = networkID
	return &record, nil
}

// DeleteMember removes a member from the controller.
func (c *LocalClient) DeleteMember(ctx context.Context, networkID, memberID string) error {
	return c.do(ctx, http.MethodDelete, "/controller/network/"+networkID+"/member/"+memberID, nil, nil)
}

// fillPeerInfo enriches a member record with connectivity data from the
// peer list. Best effort: a node the service has never talked to simply
// has no peer entry.
func (c *LocalClient) fillPeerInfo(ctx context.Context, record *MemberRecord) {
	var peer struct {
		Address string `json:"address"`
		Paths   []struct {
			Address     string `json:"address"`
			LastReceive int64  `json:"lastReceive"`
			Active      bool   `json:"active"`
			Preferred   bool   `json:"preferred"`
		} `json:"paths"`
	}
	if err := c.do(ctx, http.MethodGet, "/peer/"+record.ID, nil, &peer); err != nil {
		return
	}
	for _, p := range peer.Paths {
		if p.LastReceive > record.LastSeen {
			record.LastSeen = p.LastReceive
		}
		if p.Preferred && p.Address != "" {
			record.PhysicalAddress = p.Address
		}
	}
}

func (c *LocalClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-ZT1-Auth", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controller request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("controller returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
