// Package mcp exposes network and member management as MCP tools so
// AI assistants can inspect and operate networks over the same member
// service the console uses.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/member"
	"github.com/martinsuchenak/ztnetd/internal/model"
	"github.com/martinsuchenak/ztnetd/internal/storage"
)

// Server wraps the MCP server with network and member management
type Server struct {
	mcpServer   *mcp.Server
	storage     storage.Storage
	members     *member.Service
	bearerToken string
}

// NewServer creates a new MCP server for network management
func NewServer(store storage.Storage, members *member.Service, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("ztnetd", "1.0.0"),
		storage:     store,
		members:     members,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// registerTools registers all network management tools
func (s *Server) registerTools() {
	s.mcpServer.RegisterTool(
		mcp.NewTool("network_list", "List managed networks, optionally filtered by name",
			mcp.String("name", "Partial name to filter by"),
		),
		s.handleNetworkList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("network_get", "Get a network's configuration by its 16-character ID",
			mcp.String("network_id", "Network ID", mcp.Required()),
		),
		s.handleNetworkGet,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("member_list", "List a network's members with live controller state. Stashed members the controller still lists are reported separately as zombies.",
			mcp.String("network_id", "Network ID", mcp.Required()),
		),
		s.handleMemberList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("member_get", "Get a single member of a network",
			mcp.String("network_id", "Network ID", mcp.Required()),
			mcp.String("member_id", "Member node address (10 hex characters)", mcp.Required()),
		),
		s.handleMemberGet,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("member_authorize", "Authorize or de-authorize a member on a network",
			mcp.String("network_id", "Network ID", mcp.Required()),
			mcp.String("member_id", "Member node address", mcp.Required()),
			mcp.String("authorized", "true or false (default true)"),
		),
		s.handleMemberAuthorize,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("member_stash", "Soft-delete a member. It is de-authorized and hidden but can be restored by re-adding it.",
			mcp.String("network_id", "Network ID", mcp.Required()),
			mcp.String("member_id", "Member node address", mcp.Required()),
		),
		s.handleMemberStash,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("member_delete", "Delete a member. Deleting a stashed member is permanent: the node address can never rejoin this network.",
			mcp.String("network_id", "Network ID", mcp.Required()),
			mcp.String("member_id", "Member node address", mcp.Required()),
		),
		s.handleMemberDelete,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("stash_purge", "Permanently delete every stashed member of a network",
			mcp.String("network_id", "Network ID", mcp.Required()),
		),
		s.handleStashPurge,
	)
}

func (s *Server) handleNetworkList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	filter := &model.NetworkFilter{Name: req.StringOr("name", "")}

	networks, err := s.storage.ListNetworks(filter)
	if err != nil {
		log.Error("MCP network list failed", "error", err)
		return nil, mcp.NewToolErrorInternal("listing networks: " + err.Error())
	}

	if len(networks) == 0 {
		return mcp.NewToolResponseText("No networks found."), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d network(s):\n\n", len(networks)))
	for i := range networks {
		result.WriteString(s.formatNetworkSummary(&networks[i]))
		result.WriteString("\n")
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleNetworkGet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, err := req.String("network_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("network_id is required: " + err.Error())
	}

	network, err := s.storage.GetNetwork(networkID)
	if err != nil {
		log.Error("MCP network get failed", "error", err, "network", networkID)
		return nil, mcp.NewToolErrorInternal("network not found: " + err.Error())
	}
	return mcp.NewToolResponseText(s.formatNetworkSummary(network)), nil
}

func (s *Server) handleMemberList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, err := req.String("network_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("network_id is required: " + err.Error())
	}

	roster, err := s.members.Reconcile(ctx, networkID)
	if err != nil {
		log.Error("MCP member list failed", "error", err, "network", networkID)
		return nil, mcp.NewToolErrorInternal("listing members: " + err.Error())
	}

	var result strings.Builder
	if roster.Stale {
		result.WriteString("Warning: controller unreachable, listing reflects stored state only.\n\n")
	}
	result.WriteString(fmt.Sprintf("%d member(s):\n\n", len(roster.Members)))
	for i := range roster.Members {
		result.WriteString(s.formatMemberSummary(&roster.Members[i]))
		result.WriteString("\n")
	}
	if len(roster.Zombies) > 0 {
		result.WriteString(fmt.Sprintf("%d zombie(s) still known to the controller but stashed here:\n\n", len(roster.Zombies)))
		for i := range roster.Zombies {
			result.WriteString(s.formatMemberSummary(&roster.Zombies[i]))
			result.WriteString("\n")
		}
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleMemberGet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, memberID, errResp := s.memberParams(req)
	if errResp != nil {
		return nil, errResp
	}

	m, err := s.storage.GetMember(networkID, memberID)
	if err != nil {
		log.Error("MCP member get failed", "error", err, "network", networkID, "member", memberID)
		return nil, mcp.NewToolErrorInternal("member not found: " + err.Error())
	}
	return mcp.NewToolResponseText(s.formatMemberSummary(m)), nil
}

func (s *Server) handleMemberAuthorize(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, memberID, errResp := s.memberParams(req)
	if errResp != nil {
		return nil, errResp
	}

	authorized, err := strconv.ParseBool(req.StringOr("authorized", "true"))
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("authorized must be true or false")
	}

	m, err := s.members.Update(ctx, networkID, memberID, &model.MemberUpdate{Authorized: &authorized})
	if err != nil {
		log.Error("MCP member authorize failed", "error", err, "network", networkID, "member", memberID)
		return nil, mcp.NewToolErrorInternal("updating member: " + err.Error())
	}

	log.Info("MCP member authorization changed", "network", networkID, "member", memberID, "authorized", authorized)
	return mcp.NewToolResponseText(s.formatMemberSummary(m)), nil
}

func (s *Server) handleMemberStash(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, memberID, errResp := s.memberParams(req)
	if errResp != nil {
		return nil, errResp
	}

	if err := s.members.Stash(ctx, networkID, memberID); err != nil {
		log.Error("MCP member stash failed", "error", err, "network", networkID, "member", memberID)
		return nil, mcp.NewToolErrorInternal("stashing member: " + err.Error())
	}

	log.Info("MCP member stashed", "network", networkID, "member", memberID)
	return mcp.NewToolResponseText(fmt.Sprintf("Member %s stashed on network %s. Re-add it to restore.", memberID, networkID)), nil
}

func (s *Server) handleMemberDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, memberID, errResp := s.memberParams(req)
	if errResp != nil {
		return nil, errResp
	}

	if err := s.members.Delete(ctx, networkID, memberID); err != nil {
		log.Error("MCP member delete failed", "error", err, "network", networkID, "member", memberID)
		return nil, mcp.NewToolErrorInternal("deleting member: " + err.Error())
	}

	log.Info("MCP member deleted", "network", networkID, "member", memberID)
	return mcp.NewToolResponseText(fmt.Sprintf("Member %s deleted from network %s.", memberID, networkID)), nil
}

func (s *Server) handleStashPurge(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	networkID, err := req.String("network_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("network_id is required: " + err.Error())
	}

	n, err := s.members.BulkDeleteStashed(ctx, networkID)
	if err != nil {
		log.Error("MCP stash purge failed", "error", err, "network", networkID)
		return nil, mcp.NewToolErrorInternal("purging stash: " + err.Error())
	}

	log.Info("MCP stash purged", "network", networkID, "deleted", n)
	return mcp.NewToolResponseText(fmt.Sprintf("Permanently deleted %d stashed member(s) from network %s.", n, networkID)), nil
}

func (s *Server) memberParams(req *mcp.ToolRequest) (string, string, error) {
	networkID, err := req.String("network_id")
	if err != nil {
		return "", "", mcp.NewToolErrorInvalidParams("network_id is required: " + err.Error())
	}
	memberID, err := req.String("member_id")
	if err != nil {
		return "", "", mcp.NewToolErrorInvalidParams("member_id is required: " + err.Error())
	}
	return networkID, memberID, nil
}

func (s *Server) formatNetworkSummary(network *model.Network) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Name: %s\n", network.Name))
	result.WriteString(fmt.Sprintf("ID: %s\n", network.ID))
	result.WriteString(fmt.Sprintf("Private: %t\n", network.Private))
	for _, route := range network.Routes {
		if route.Via != "" {
			result.WriteString(fmt.Sprintf("Route: %s via %s\n", route.Target, route.Via))
		} else {
			result.WriteString(fmt.Sprintf("Route: %s\n", route.Target))
		}
	}
	if network.Description != "" {
		result.WriteString(fmt.Sprintf("Description: %s\n", network.Description))
	}
	return result.String()
}

func (s *Server) formatMemberSummary(m *model.Member) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("ID: %s\n", m.ID))
	if m.Name != "" {
		result.WriteString(fmt.Sprintf("Name: %s\n", m.Name))
	}
	result.WriteString(fmt.Sprintf("Authorized: %t\n", m.Authorized))
	result.WriteString(fmt.Sprintf("Online: %t\n", m.Online))
	if len(m.IPAssignments) > 0 {
		result.WriteString(fmt.Sprintf("IPs: %s\n", strings.Join(m.IPAssignments, ", ")))
	}
	if m.PhysicalAddress != "" {
		result.WriteString(fmt.Sprintf("Physical: %s\n", m.PhysicalAddress))
	}
	if !m.LastSeen.IsZero() {
		result.WriteString(fmt.Sprintf("Last seen: %s\n", m.LastSeen.Format("2006-01-02 15:04:05")))
	}
	if m.State() != model.StateActive {
		result.WriteString(fmt.Sprintf("State: %s\n", m.State()))
	}
	return result.String()
}

// HandleRequest gates the MCP endpoint with the bearer token before
// handing off to the protocol handler.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != s.bearerToken {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns the gated endpoint as an http.HandlerFunc
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs the registered tools
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", "1.0.0")
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name, "description", tool.Description)
	}
}
