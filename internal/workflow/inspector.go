// Package workflow inspects workflow JSON files: node listings plus
// catalog-backed detection of node types the installation is missing.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"takumi/internal/catalog"
)

// widgetPreviewLen caps the widget value preview per node.
const widgetPreviewLen = 60

// parseLimit bounds concurrent workflow parsing.
const parseLimit = 4

// titleProperty is where the editor stashes a node's renamed title.
const titleProperty = "Node name for S&R"

// NodeInfo is one node in a workflow listing.
type NodeInfo struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Widgets string `json:"widgets,omitempty"`
}

// Report is the inspection result for one workflow file. A file that
// cannot be read or parsed reports its error and nothing else.
type Report struct {
	Path         string     `json:"path"`
	Nodes        []NodeInfo `json:"nodes,omitempty"`
	MissingTypes []string   `json:"missing_types,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type workflowNode struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Properties    map[string]any `json:"properties"`
	WidgetsValues []any          `json:"widgets_values"`
}

type workflowDocument struct {
	Nodes []workflowNode `json:"nodes"`
}

// Inspector parses workflow files and, when a catalog is loaded,
// resolves each node type against it.
type Inspector struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

// NewInspector returns an inspector. A nil catalog disables
// missing-type detection.
func NewInspector(cat *catalog.Service, logger *zap.Logger) *Inspector {
	return &Inspector{catalog: cat, logger: logger}
}

// Inspect parses the files concurrently; reports come back in input
// order regardless of completion order. Per-file problems land in that
// file's report, never in an error return.
func (i *Inspector) Inspect(ctx context.Context, paths ...string) []Report {
	reports := make([]Report, len(paths))

	var g errgroup.Group
	g.SetLimit(parseLimit)
	for idx, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[idx] = Report{Path: path, Error: err.Error()}
				return nil
			}
			reports[idx] = i.inspectFile(path)
			return nil
		})
	}
	g.Wait()

	return reports
}

func (i *Inspector) inspectFile(path string) Report {
	report := Report{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	var doc workflowDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		report.Error = fmt.Sprintf("not a valid workflow file: %v", err)
		return report
	}

	seenMissing := map[string]bool{}
	for _, node := range doc.Nodes {
		report.Nodes = append(report.Nodes, NodeInfo{
			ID:      node.ID,
			Type:    node.Type,
			Title:   nodeTitle(node),
			Widgets: widgetPreview(node.WidgetsValues),
		})
		if i.catalog == nil || node.Type == "" || seenMissing[node.Type] {
			continue
		}
		if _, ok := i.catalog.Lookup(node.Type); !ok {
			seenMissing[node.Type] = true
			report.MissingTypes = append(report.MissingTypes, node.Type)
		}
	}

	i.logger.Debug("workflow inspected",
		zap.String("path", path),
		zap.Int("nodes", len(report.Nodes)),
		zap.Int("missing_types", len(report.MissingTypes)))
	return report
}

// nodeTitle picks the display title: the search-and-replace property
// when the user renamed the node, then the stored title, then the
// type itself.
func nodeTitle(node workflowNode) string {
	if s, ok := node.Properties[titleProperty].(string); ok && s != "" {
		return s
	}
	if node.Title != "" {
		return node.Title
	}
	return node.Type
}

// widgetPreview renders widget values compactly for listings; long
// values (prompt texts, file paths) are cut at widgetPreviewLen.
func widgetPreview(values []any) string {
	s := fmt.Sprintf("%v", values)
	if len(s) > widgetPreviewLen {
		s = s[:widgetPreviewLen-3] + "..."
	}
	return s
}
