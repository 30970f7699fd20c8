package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"takumi/internal/knowledge"
	"takumi/internal/requirement"
)

// StandardDeclarationFile is the declaration filename read for every
// component.
const StandardDeclarationFile = "requirements.txt"

// Scanner walks a component root and builds the session manifest.
// Scanning is read-only and never fails: unreadable files and a
// missing root degrade to warnings.
type Scanner struct {
	kb     *knowledge.Base
	logger *zap.Logger
}

// NewScanner returns a scanner using the given knowledge base for
// per-node rules.
func NewScanner(kb *knowledge.Base, logger *zap.Logger) *Scanner {
	return &Scanner{kb: kb, logger: logger}
}

// Scan reads every immediate subdirectory of root as a component.
// Hidden directories (leading ".") are skipped. Components with no
// resolvable declarations are omitted entirely. Component order is
// directory listing order, so manifests are deterministic.
func (s *Scanner) Scan(root string) *Manifest {
	m := &Manifest{}

	entries, err := os.ReadDir(root)
	if err != nil {
		s.logger.Warn("component root unreadable, manifest is empty",
			zap.String("root", root),
			zap.Error(err))
		return m
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		comp := s.scanComponent(root, entry.Name())
		if len(comp.Requirements) == 0 {
			continue
		}
		m.Components = append(m.Components, comp)
	}

	s.logger.Info("manifest built",
		zap.String("root", root),
		zap.Int("components", m.Len()),
		zap.Int("requirements", m.TotalRequirements()))
	return m
}

func (s *Scanner) scanComponent(root, id string) Component {
	comp := Component{ID: id}

	files := []string{StandardDeclarationFile}
	rule, hasRule := s.kb.NodeRules[id]
	if hasRule {
		files = append(files, rule.ExtraFiles...)
	}

	for _, name := range files {
		path := filepath.Join(root, id, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("declaration file unreadable, skipping",
					zap.String("path", path),
					zap.Error(err))
			}
			continue
		}
		reqs := requirement.ParseLines(string(data))
		comp.Requirements = append(comp.Requirements, reqs...)
		s.logger.Debug("declaration file read",
			zap.String("path", path),
			zap.Int("requirements", len(reqs)))
	}

	if hasRule {
		for _, line := range rule.Inject {
			if r, ok := requirement.Parse(line); ok {
				comp.Requirements = append(comp.Requirements, r)
			}
		}
	}

	return comp
}
