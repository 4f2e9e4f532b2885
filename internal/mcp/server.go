package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dpla/fieldmap/internal/daemon"
	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

const uriScheme = "fieldmap://"

// Backend is the subset of the daemon API the MCP tools call.
type Backend interface {
	Status(ctx context.Context) (*rpc.StatusResponse, error)
	Reload(ctx context.Context, req rpc.ReloadRequest) (*rpc.ReloadResponse, error)
	Fields(ctx context.Context, req rpc.FieldsRequest) (*rpc.FieldsResponse, error)
	Describe(ctx context.Context, req rpc.DescribeRequest) (*rpc.DescribeResponse, error)
	Facets(ctx context.Context, req rpc.FacetsRequest) (*rpc.FacetsResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	client    Backend
}

// NewServer connects to (or spawns) the daemon and builds the MCP server.
func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return New(client), nil
}

func New(client Backend) *Server {
	s := &Server{client: client}

	mcpServer := server.NewMCPServer(
		"fieldmap",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("list_resources",
			mcp.WithDescription("List the indexed resources (document types) and how many fields each has."),
		),
		s.handleListResources,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_fields",
			mcp.WithDescription("Find fields by name or dotted path. Exact name matches rank first, then exact paths, path prefixes and substrings. Returns URIs that can be read as resources."),
			mcp.WithString("query",
				mcp.Description("Field name or path fragment, e.g. \"subject\" or \"sourceResource.date\""),
			),
			mcp.WithArray("resources",
				mcp.Description("Optional list of resources to search within"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithString("type",
				mcp.Description("Only fields with this mapping type (e.g. \"date\")"),
			),
			mcp.WithBoolean("facetable_only",
				mcp.Description("Only fields usable as facets"),
			),
			mcp.WithBoolean("sortable_only",
				mcp.Description("Only sortable fields"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleSearchFields,
	)

	mcpServer.AddTool(
		mcp.NewTool("describe_field",
			mcp.WithDescription("Describe one field: type, whether it is analyzed, enabled, sortable and facetable, its facet path, subfields and alternate representations."),
			mcp.WithString("resource",
				mcp.Description("Resource name, e.g. \"item\""),
				mcp.Required(),
			),
			mcp.WithString("path",
				mcp.Description("Dotted field path, e.g. \"sourceResource.subject.name\""),
				mcp.Required(),
			),
		),
		s.handleDescribeField,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_facets",
			mcp.WithDescription("List every facetable field of a resource with the path a facet aggregation should target."),
			mcp.WithString("resource",
				mcp.Description("Resource name, e.g. \"item\""),
				mcp.Required(),
			),
		),
		s.handleListFacets,
	)

	mcpServer.AddTool(
		mcp.NewTool("reload_mappings",
			mcp.WithDescription("Reload the mapping definitions and rebuild the field catalog."),
			mcp.WithBoolean("live",
				mcp.Description("Also load the mapping of the live search index"),
			),
			mcp.WithBoolean("refresh",
				mcp.Description("Refetch the live mapping instead of using the cached copy"),
			),
		),
		s.handleReload,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			uriScheme+"{resource}/{path}",
			"Field description",
			mcp.WithTemplateDescription("Read the description of one field. Search results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleListResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(resp.Resources), nil
}

func (s *Server) handleSearchFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var fieldsReq rpc.FieldsRequest
	fieldsReq.Query, _ = args["query"].(string)
	fieldsReq.Type, _ = args["type"].(string)
	fieldsReq.FacetableOnly, _ = args["facetable_only"].(bool)
	fieldsReq.SortableOnly, _ = args["sortable_only"].(bool)

	if resourcesRaw, ok := args["resources"]; ok {
		resourcesJSON, _ := json.Marshal(resourcesRaw)
		if err := json.Unmarshal(resourcesJSON, &fieldsReq.Resources); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid resources parameter: %v", err)), nil
		}
	}
	if limit, ok := args["limit"].(float64); ok {
		fieldsReq.Limit = int(limit)
	}

	resp, err := s.client.Fields(ctx, fieldsReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp.Results), nil
}

func (s *Server) handleDescribeField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	resource, _ := args["resource"].(string)
	path, _ := args["path"].(string)
	if resource == "" || path == "" {
		return mcp.NewToolResultError("missing required parameters: resource and path"), nil
	}

	resp, err := s.client.Describe(ctx, rpc.DescribeRequest{Resource: resource, Path: path})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("describe failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleListFacets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	resource, _ := args["resource"].(string)
	if resource == "" {
		return mcp.NewToolResultError("missing required parameter: resource"), nil
	}

	resp, err := s.client.Facets(ctx, rpc.FacetsRequest{Resource: resource})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing facets failed: %v", err)), nil
	}
	return jsonResult(resp.Facets), nil
}

func (s *Server) handleReload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var reloadReq rpc.ReloadRequest
	reloadReq.Live, _ = args["live"].(bool)
	reloadReq.Refresh, _ = args["refresh"].(bool)

	resp, err := s.client.Reload(ctx, reloadReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reload failed: %v", err)), nil
	}
	return jsonResult(resp.Resources), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	resource, path, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Describe(ctx, rpc.DescribeRequest{Resource: resource, Path: path})
	if err != nil {
		return nil, fmt.Errorf("describing field: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

// parseURI splits fieldmap://resource/path.
func parseURI(uri string) (resource, path string, err error) {
	trimmed, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	resource, path, ok = strings.Cut(trimmed, "/")
	if !ok || resource == "" || path == "" {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	return resource, path, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	resultJSON, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(resultJSON))
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
