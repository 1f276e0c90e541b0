package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCentralClient_FlattensMemberEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token central-tok" {
			t.Errorf("Expected token auth header, got %q", got)
		}
		if r.URL.Path != "/network/8056c2e21c000001/member/aabbccdd01" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"nodeId":          "aabbccdd01",
			"networkId":       "8056c2e21c000001",
			"lastSeen":        1700000000123,
			"physicalAddress": "203.0.113.7",
			"name":            "nas",
			"config": map[string]interface{}{
				"authorized":    true,
				"ipAssignments": []string{"10.121.0.10"},
				"vRev":          7,
			},
		})
	}))
	defer srv.Close()

	client := NewCentralClient(srv.URL, "central-tok")
	record, err := client.GetMember(context.Background(), "8056c2e21c000001", "aabbccdd01")
	if err != nil {
		t.Fatalf("GetMember() error = %v", err)
	}

	if record.ID != "aabbccdd01" || record.NetworkID != "8056c2e21c000001" {
		t.Errorf("Identifiers not flattened: %+v", record)
	}
	if !record.Authorized || record.LastSeen != 1700000000123 {
		t.Errorf("Envelope fields not flattened: %+v", record)
	}
	if record.PhysicalAddress != "203.0.113.7" || record.VersionRev != 7 {
		t.Errorf("Envelope fields not flattened: %+v", record)
	}
}

func TestCentralClient_UpdateMemberWrapsConfig(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"nodeId":    "aabbccdd01",
			"networkId": "8056c2e21c000001",
			"config":    map[string]interface{}{"authorized": true},
		})
	}))
	defer srv.Close()

	client := NewCentralClient(srv.URL, "central-tok")
	authorized := true
	name := "nas"
	_, err := client.UpdateMember(context.Background(), "8056c2e21c000001", "aabbccdd01",
		&MemberUpdateRecord{Authorized: &authorized, Name: &name})
	if err != nil {
		t.Fatalf("UpdateMember() error = %v", err)
	}

	// Central wants the name at the top level and the rest nested.
	if body["name"] != "nas" {
		t.Errorf("Expected top-level name, got %v", body["name"])
	}
	config, ok := body["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected nested config object, got %v", body)
	}
	if v, ok := config["authorized"].(bool); !ok || !v {
		t.Errorf("Expected authorized in config, got %v", config)
	}
}

func TestCentralClient_FlattensNetworkEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "8056c2e21c000001",
			"config": map[string]interface{}{
				"name":    "homelab",
				"private": true,
				"routes":  []map[string]interface{}{{"target": "10.121.0.0/16"}},
				"mtu":     2800,
			},
			"rulesSource": "accept;",
		})
	}))
	defer srv.Close()

	client := NewCentralClient(srv.URL, "central-tok")
	record, err := client.GetNetwork(context.Background(), "8056c2e21c000001")
	if err != nil {
		t.Fatalf("GetNetwork() error = %v", err)
	}
	if record.Name != "homelab" || !record.Private || record.MTU != 2800 {
		t.Errorf("Network envelope not flattened: %+v", record)
	}
	if len(record.Routes) != 1 || record.Routes[0].Target != "10.121.0.0/16" {
		t.Errorf("Routes not flattened: %+v", record.Routes)
	}
	if record.Rules != "accept;" {
		t.Errorf("Expected rulesSource, got %q", record.Rules)
	}
}

func TestCentralClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"NotFound", http.StatusNotFound, ErrNotFound},
		{"Unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"Forbidden", http.StatusForbidden, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewCentralClient(srv.URL, "central-tok")
			_, err := client.GetNetwork(context.Background(), "8056c2e21c000001")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
