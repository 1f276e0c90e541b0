package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CentralClient speaks to the hosted ZeroTier Central API. Central
// wraps the controller configuration in an envelope with a nested
// config object, so records are translated at this boundary and the
// rest of the system sees the same flat shapes as with the node
// service.
type CentralClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Client = (*CentralClient)(nil)

// NewCentralClient builds a client for ZeroTier Central.
func NewCentralClient(baseURL, token string) *CentralClient {
	if baseURL == "" {
		baseURL = "https://api.zerotier.com/api/v1"
	}
	return &CentralClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// centralMember is Central's member envelope.
type centralMember struct {
	ID              string              `json:"nodeId"`
	NetworkID       string              `json:"networkId"`
	LastSeen        int64               `json:"lastSeen"`
	PhysicalAddress string              `json:"physicalAddress"`
	Name            string              `json:"name"`
	Config          centralMemberConfig `json:"config"`
}

type centralMemberConfig struct {
	Authorized      bool        `json:"authorized"`
	ActiveBridge    bool        `json:"activeBridge"`
	NoAutoAssignIPs bool        `json:"noAutoAssignIps"`
	IPAssignments   []string    `json:"ipAssignments"`
	Tags            [][2]uint32 `json:"tags"`
	Capabilities    []uint32    `json:"capabilities"`
	VRev            int64       `json:"vRev"`
}

// centralNetwork is Central's network envelope.
type centralNetwork struct {
	ID          string               `json:"id"`
	Config      centralNetworkConfig `json:"config"`
	RulesSource string               `json:"rulesSource"`
}

type centralNetworkConfig struct {
	Name           string       `json:"name"`
	Private        bool         `json:"private"`
	Routes         []RouteEntry `json:"routes"`
	IPPools        []PoolEntry  `json:"ipAssignmentPools"`
	V4AssignMode   AssignMode   `json:"v4AssignMode"`
	DNS            DNSEntry     `json:"dns"`
	MulticastLimit int          `json:"multicastLimit"`
	MTU            int          `json:"mtu"`
}

// Status reports Central availability. Central has no node identity,
// so the record carries only reachability.
func (c *CentralClient) Status(ctx context.Context) (*NodeStatus, error) {
	var raw struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &raw); err != nil {
		return nil, err
	}
	return &NodeStatus{Online: true, Version: raw.Version}, nil
}

// GetNetwork fetches a Central network and flattens the envelope.
func (c *CentralClient) GetNetwork(ctx context.Context, networkID string) (*NetworkRecord, error) {
	var envelope centralNetwork
	if err := c.do(ctx, http.MethodGet, "/network/"+networkID, nil, &envelope); err != nil {
		return nil, err
	}
	return flattenNetwork(&envelope), nil
}

// CreateNetwork creates a network on Central.
func (c *CentralClient) CreateNetwork(ctx context.Context, record *NetworkRecord) (*NetworkRecord, error) {
	var envelope centralNetwork
	if err := c.do(ctx, http.MethodPost, "/network", wrapNetwork(record), &envelope); err != nil {
		return nil, err
	}
	return flattenNetwork(&envelope), nil
}

// UpdateNetwork pushes configuration to Central.
func (c *CentralClient) UpdateNetwork(ctx context.Context, networkID string, record *NetworkRecord) (*NetworkRecord, error) {
	var envelope centralNetwork
	if err := c.do(ctx, http.MethodPost, "/network/"+networkID, wrapNetwork(record), &envelope); err != nil {
		return nil, err
	}
	return flattenNetwork(&envelope), nil
}

// DeleteNetwork removes a network from Central.
func (c *CentralClient) DeleteNetwork(ctx context.Context, networkID string) error {
	return c.do(ctx, http.MethodDelete, "/network/"+networkID, nil, nil)
}

// ListNetworkMembers lists all members of a Central network.
func (c *CentralClient) ListNetworkMembers(ctx context.Context, networkID string) ([]MemberRecord, error) {
	var envelopes []centralMember
	if err := c.do(ctx, http.MethodGet, "/network/"+networkID+"/member", nil, &envelopes); err != nil {
		return nil, err
	}

	members := make([]MemberRecord, 0, len(envelopes))
	for i := range envelopes {
		members = append(members, *flattenMember(&envelopes[i]))
	}
	return members, nil
}

// GetMember fetches one Central member record.
func (c *CentralClient) GetMember(ctx context.Context, networkID, memberID string) (*MemberRecord, error) {
	var envelope centralMember
	if err := c.do(ctx, http.MethodGet, "/network/"+networkID+"/member/"+memberID, nil, &envelope); err != nil {
		return nil, err
	}
	return flattenMember(&envelope), nil
}

// UpdateMember pushes member fields to Central.
func (c *CentralClient) UpdateMember(ctx context.Context, networkID, memberID string, update *MemberUpdateRecord) (*MemberRecord, error) {
	body := struct {
		Name   *string             `json:"name,omitempty"`
		Config *MemberUpdateRecord `json:"config"`
	}{Name: update.Name, Config: update}

	var envelope centralMember
	if err := c.do(ctx, http.MethodPost, "/network/"+networkID+"/member/"+memberID, body, &envelope); err != nil {
		return nil, err
	}
	return flattenMember(&envelope), nil
}

// DeleteMember removes a member from Central.
func (c *CentralClient) DeleteMember(ctx context.Context, networkID, memberID string) error {
	return c.do(ctx, http.MethodDelete, "/network/"+networkID+"/member/"+memberID, nil, nil)
}

func flattenMember(envelope *centralMember) *MemberRecord {
	return &MemberRecord{
		ID:              envelope.ID,
		NetworkID:       envelope.NetworkID,
		Authorized:      envelope.Config.Authorized,
		ActiveBridge:    envelope.Config.ActiveBridge,
		NoAutoAssignIPs: envelope.Config.NoAutoAssignIPs,
		IPAssignments:   envelope.Config.IPAssignments,
		Tags:            envelope.Config.Tags,
		Capabilities:    envelope.Config.Capabilities,
		PhysicalAddress: envelope.PhysicalAddress,
		LastSeen:        envelope.LastSeen,
		VersionRev:      envelope.Config.VRev,
	}
}

func flattenNetwork(envelope *centralNetwork) *NetworkRecord {
	return &NetworkRecord{
		ID:             envelope.ID,
		Name:           envelope.Config.Name,
		Private:        envelope.Config.Private,
		Routes:         envelope.Config.Routes,
		IPPools:        envelope.Config.IPPools,
		V4AssignMode:   envelope.Config.V4AssignMode,
		DNS:            envelope.Config.DNS,
		MulticastLimit: envelope.Config.MulticastLimit,
		MTU:            envelope.Config.MTU,
		Rules:          envelope.RulesSource,
	}
}

func wrapNetwork(record *NetworkRecord) *centralNetwork {
	return &centralNetwork{
		ID: record.ID,
		Config: centralNetworkConfig{
			Name:           record.Name,
			Private:        record.Private,
			Routes:         record.Routes,
			IPPools:        record.IPPools,
			V4AssignMode:   record.V4AssignMode,
			DNS:            record.DNS,
			MulticastLimit: record.MulticastLimit,
			MTU:            record.MTU,
		},
		RulesSource: record.Rules,
	}
}

func (c *CentralClient) do(ctx context.Context, method, path string, body, out interface{}) error {
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
	req.Header.Set("Authorization", "token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("central request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("central returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
