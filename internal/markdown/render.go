package markdown

import (
	"fmt"
	"sort"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	gmparser "github.com/gomarkdown/markdown/parser"

	"github.com/dpla/fieldmap/internal/rpc"
)

// RenderField describes one field as markdown: a property table followed by
// its subfields and alternate representations.
func RenderField(d rpc.FieldDetail) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s.%s\n\n", d.Resource, d.Path)

	b.WriteString("| Property | Value |\n|---|---|\n")
	row := func(k, v string) {
		fmt.Fprintf(&b, "| %s | %s |\n", k, escapeCell(v))
	}
	row("name", code(d.Name))
	row("type", code(orNone(d.Type)))
	row("class", d.Class)
	row("analyzed", yesNo(d.Analyzed))
	row("enabled", yesNo(d.Enabled))
	if d.Sortable {
		row("sortable", fmt.Sprintf("yes (`%v`)", d.SortKey))
	} else {
		row("sortable", "no")
	}
	if d.Facetable {
		row("facetable", "yes, on "+code(d.FacetPath))
	} else {
		row("facetable", "no")
	}
	if d.VariantSuffix != "" {
		row("variant suffix", code(d.VariantSuffix))
	}

	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- [%s](fieldmap://%s/%s)\n", it, d.Resource, it)
		}
	}
	list("Subfields", d.Subfields)
	list("Alternate representations", d.Alternates)
	if len(d.AllSubfieldPaths) > len(d.Subfields) {
		list("All nested fields", d.AllSubfieldPaths)
	}

	return b.String()
}

// RenderFieldTable lists fields as a markdown table.
func RenderFieldTable(results []rpc.FieldResult) string {
	if len(results) == 0 {
		return "No fields found.\n"
	}

	var b strings.Builder
	b.WriteString("| Resource | Path | Type | Facet | Sortable |\n|---|---|---|---|---|\n")
	for _, r := range results {
		facet := ""
		if r.Facetable {
			facet = code(r.FacetPath)
		}
		path := code(r.Path)
		if r.Alternate {
			path += " (alt)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			r.Resource, path, code(orNone(r.Type)), facet, yesNo(r.Sortable))
	}
	return b.String()
}

// AddFrontMatter prepends a YAML front-matter block with the given keys.
func AddFrontMatter(src string, fields map[string]string) string {
	if len(fields) == 0 {
		return src
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s: %s\n", k, fields[k]))
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}

// ToHTML renders markdown as a standalone HTML fragment.
func ToHTML(src string) string {
	p := gmparser.NewWithExtensions(gmparser.CommonExtensions | gmparser.Autolink)
	doc := gm.Parse([]byte(src), p)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(gm.Render(doc, r))
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + s + "`"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
