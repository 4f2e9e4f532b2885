package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	md "github.com/dpla/fieldmap/internal/markdown"
	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/dpla/fieldmap/internal/search"
	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [query]",
	Short: "List or search catalog fields",
	Example: `  fieldmap fields subject
  fieldmap fields --resource item --facetable
  fieldmap fields --type date --sortable`,
	Args: cobra.MaximumNArgs(1),
	Run:  runFields,
}

var (
	fieldsResources []string
	fieldsType      string
	fieldsFacetable bool
	fieldsSortable  bool
	fieldsLimit     int
	fieldsJSON      bool
)

func init() {
	fieldsCmd.Flags().StringSliceVar(&fieldsResources, "resource", nil, "filter to specific resources (repeatable)")
	fieldsCmd.Flags().StringVar(&fieldsType, "type", "", "filter by mapping type")
	fieldsCmd.Flags().BoolVar(&fieldsFacetable, "facetable", false, "only facetable fields")
	fieldsCmd.Flags().BoolVar(&fieldsSortable, "sortable", false, "only sortable fields")
	fieldsCmd.Flags().IntVar(&fieldsLimit, "limit", search.DefaultLimit, "max results")
	fieldsCmd.Flags().BoolVar(&fieldsJSON, "json", false, "output as JSON")
}

func runFields(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	req := rpc.FieldsRequest{
		Resources:     fieldsResources,
		Type:          fieldsType,
		FacetableOnly: fieldsFacetable,
		SortableOnly:  fieldsSortable,
		Limit:         fieldsLimit,
	}
	if len(args) > 0 {
		req.Query = args[0]
	}

	resp, err := client.Fields(context.Background(), req)
	if err != nil {
		log.Fatalf("field search failed: %v", err)
	}

	if fieldsJSON {
		out, _ := json.MarshalIndent(resp.Results, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(md.RenderFieldTable(resp.Results))
}

var describeCmd = &cobra.Command{
	Use:   "describe <resource> <path> | <fieldmap://resource/path>",
	Short: "Describe one field",
	Example: `  fieldmap describe item sourceResource.subject.name
  fieldmap describe fieldmap://item/isPartOf.name
  fieldmap describe item created.before --json`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runDescribe,
}

var (
	describeJSON bool
	describeHTML bool
)

func init() {
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "output the derived properties as JSON")
	describeCmd.Flags().BoolVar(&describeHTML, "html", false, "render the description as HTML")
}

func runDescribe(cmd *cobra.Command, args []string) {
	resource, path, err := parseFieldArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Describe(context.Background(), rpc.DescribeRequest{Resource: resource, Path: path})
	if err != nil {
		log.Fatalf("describe failed: %v", err)
	}

	switch {
	case describeJSON:
		out, _ := json.MarshalIndent(resp.Field, "", "  ")
		fmt.Println(string(out))
	case describeHTML:
		fmt.Print(md.ToHTML(md.RenderField(resp.Field)))
	default:
		fmt.Print(resp.Markdown)
	}
}

// parseFieldArgs accepts "resource path", "resource/path" or a
// fieldmap:// URI.
func parseFieldArgs(args []string) (resource, path string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	ref := strings.TrimPrefix(args[0], "fieldmap://")
	resource, path, ok := strings.Cut(ref, "/")
	if !ok || resource == "" || path == "" {
		return "", "", fmt.Errorf("invalid field reference %q: need resource/path", args[0])
	}
	return resource, path, nil
}

var facetsCmd = &cobra.Command{
	Use:     "facets <resource>",
	Short:   "List the facetable fields of a resource",
	Example: `  fieldmap facets item`,
	Args:    cobra.ExactArgs(1),
	Run:     runFacets,
}

func runFacets(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Facets(context.Background(), rpc.FacetsRequest{Resource: args[0]})
	if err != nil {
		log.Fatalf("listing facets failed: %v", err)
	}

	if len(resp.Facets) == 0 {
		fmt.Println("no facetable fields")
		return
	}
	for _, f := range resp.Facets {
		if f.FacetPath != f.Path {
			fmt.Printf("  %s -> %s\n", f.Path, f.FacetPath)
		} else {
			fmt.Printf("  %s\n", f.Path)
		}
	}
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <resource>",
	Short: "Print the mapping snapshot recorded for a resource",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Snapshot(context.Background(), rpc.SnapshotRequest{Resource: args[0]})
	if err != nil {
		log.Fatalf("snapshot failed: %v", err)
	}
	fmt.Println(resp.JSON)
}
