package cmd

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

//go:embed mcp_prelude.md
var mcpPrelude string

const agentHelp = `
Commands:

  fields [query]                  search fields by name or path
    --resource <name>             limit to a resource (repeatable)
    --type <type>                 limit to a mapping type
    --facetable / --sortable      only facetable or sortable fields
  describe <resource> <path>      describe one field
  facets <resource>               list facetable fields and their facet paths
  index [--live] [files...]       reload mappings and rebuild the catalog
  snapshot <resource>             print the recorded mapping of a resource
  endpoints                       print the search and repository endpoints
  status                          list indexed resources
`

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server (publishes CLI instructions only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := binaryName()
		instructions := fmt.Sprintf(mcpPrelude, name) + agentHelp

		s := server.NewMCPServer("fieldmap-cli", "0.1.0",
			server.WithInstructions(instructions),
		)
		return server.ServeStdio(s)
	},
}

// binaryName returns "fieldmap" if it's in PATH and points to the current
// binary, otherwise returns the full path to the binary.
func binaryName() string {
	exe, err := os.Executable()
	if err != nil {
		return "fieldmap"
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "fieldmap"
	}

	onPath, err := exec.LookPath("fieldmap")
	if err == nil {
		resolved, err := filepath.EvalSymlinks(onPath)
		if err == nil && resolved == exe {
			return "fieldmap"
		}
	}

	return exe
}
