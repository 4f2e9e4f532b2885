package rpc

// ReloadRequest is the request body for POST /reload.
type ReloadRequest struct {
	// Files overrides the configured mapping files.
	Files []string `json:"files,omitempty"`
	// Live also loads the mapping fetched from the search engine,
	// using the cached copy unless Refresh is set.
	Live    bool `json:"live,omitempty"`
	Refresh bool `json:"refresh,omitempty"`
}

// ReloadResponse is the response body for POST /reload.
type ReloadResponse struct {
	Resources []ResourceResult `json:"resources"`
}

type ResourceResult struct {
	Name        string `json:"name"`
	MappingHash string `json:"mapping_hash"`
	Fields      int    `json:"fields"`
	Unchanged   bool   `json:"unchanged,omitempty"`
}

// FieldsRequest is the request body for POST /fields.
type FieldsRequest struct {
	Query         string   `json:"query,omitempty"`
	Resources     []string `json:"resources,omitempty"`
	Type          string   `json:"type,omitempty"`
	FacetableOnly bool     `json:"facetable_only,omitempty"`
	SortableOnly  bool     `json:"sortable_only,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// FieldsResponse is the response body for POST /fields.
type FieldsResponse struct {
	Results []FieldResult `json:"results"`
}

type FieldResult struct {
	URI       string `json:"uri"`
	Resource  string `json:"resource"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	Facetable bool   `json:"facetable"`
	FacetPath string `json:"facet_path,omitempty"`
	Sortable  bool   `json:"sortable"`
	Alternate bool   `json:"alternate,omitempty"`
}

// DescribeRequest is the request body for POST /describe.
type DescribeRequest struct {
	Resource string `json:"resource"`
	Path     string `json:"path"`
}

// DescribeResponse is the response body for POST /describe.
type DescribeResponse struct {
	Field    FieldDetail `json:"field"`
	Markdown string      `json:"markdown"`
}

// FieldDetail is every derived property of one field descriptor.
type FieldDetail struct {
	Resource         string   `json:"resource"`
	Path             string   `json:"path"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Class            string   `json:"class"`
	VariantSuffix    string   `json:"variant_suffix,omitempty"`
	Analyzed         bool     `json:"analyzed"`
	Enabled          bool     `json:"enabled"`
	Sortable         bool     `json:"sortable"`
	SortKey          any      `json:"sort_key,omitempty"`
	Facetable        bool     `json:"facetable"`
	FacetPath        string   `json:"facet_path,omitempty"`
	Subfields        []string `json:"subfields,omitempty"`
	Alternates       []string `json:"alternates,omitempty"`
	AllSubfieldPaths []string `json:"all_subfield_paths,omitempty"`
}

// FacetsRequest is the request body for POST /facets.
type FacetsRequest struct {
	Resource string `json:"resource"`
}

// FacetsResponse is the response body for POST /facets.
type FacetsResponse struct {
	Facets []FacetResult `json:"facets"`
}

type FacetResult struct {
	Path      string `json:"path"`
	FacetPath string `json:"facet_path"`
	Type      string `json:"type"`
}

// SnapshotRequest is the request body for POST /snapshot.
type SnapshotRequest struct {
	Resource string `json:"resource"`
}

// SnapshotResponse is the response body for POST /snapshot.
type SnapshotResponse struct {
	Resource    string `json:"resource"`
	MappingHash string `json:"mapping_hash"`
	JSON        string `json:"json"`
}

// ClearCacheResponse is the response body for POST /clear-cache.
type ClearCacheResponse struct {
	Removed int `json:"removed"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Resources  []ResourceStatus `json:"resources"`
	Snapshots  int              `json:"snapshots"`
	Search     string           `json:"search_endpoint,omitempty"`
	Repository string           `json:"repository_endpoint,omitempty"`
}

type ResourceStatus struct {
	Name        string `json:"name"`
	MappingHash string `json:"mapping_hash"`
	Fields      int    `json:"fields"`
	IndexedAt   string `json:"indexed_at"`
}
