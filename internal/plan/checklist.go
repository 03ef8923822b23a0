package plan

import (
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// RenderChecklist renders p as a plain-text checklist. Sections appear in a
// fixed order and are omitted entirely when empty; each section is followed
// by a blank line. Risks are never rendered.
func RenderChecklist(p DetailedPlan) string {
	var out []string

	if p.Overview != "" {
		out = append(out, "Overview: "+p.Overview, "")
	}

	if len(p.Dependencies) > 0 {
		items := make([]string, 0, len(p.Dependencies))
		for _, d := range p.Dependencies {
			name := d.Name
			if d.Version != "" {
				name += "@" + d.Version
			}
			items = append(items, name+" — "+d.Purpose)
		}
		out = append(out, "Dependencies:", renderList(items, 1), "")
	}

	if files := FileTree(p.FileStructure); len(files) > 0 {
		out = append(out, "File Structure:", renderList(files, 1), "")
	}

	if len(p.DataModels) > 0 {
		items := make([]string, 0, len(p.DataModels))
		for _, m := range p.DataModels {
			fields := make([]string, 0, len(m.Fields))
			for _, f := range m.Fields {
				fields = append(fields, f.Name+":"+f.Type)
			}
			items = append(items, m.Name+" ("+strings.Join(fields, ", ")+")")
		}
		out = append(out, "Data Models:", renderList(items, 1), "")
	}

	if len(p.Routes) > 0 {
		items := make([]string, 0, len(p.Routes))
		for _, r := range p.Routes {
			method := r.Method
			if method == "" {
				method = "ANY"
			}
			item := method + " " + r.Path
			if r.Description != "" {
				item += " — " + r.Description
			}
			items = append(items, item)
		}
		out = append(out, "Routes:", renderList(items, 1), "")
	}

	if len(p.Components) > 0 {
		items := make([]string, 0, len(p.Components))
		for _, c := range p.Components {
			item := c.Name
			if c.Category != "" {
				item += " [" + c.Category + "]"
			}
			items = append(items, item)
		}
		out = append(out, "Components:", renderList(items, 1), "")
	}

	if len(p.ImplementationSteps) > 0 {
		out = append(out, "Implementation Steps:")
		for _, g := range groupByPhase(p.ImplementationSteps) {
			out = append(out, "  "+g.phase+":")
			for _, s := range g.steps {
				out = append(out, "  - [ ] "+s.ID+" "+s.Description)
				if len(s.FilesToCreate) > 0 {
					out = append(out, renderList(prefixAll("create ", s.FilesToCreate), 2))
				}
				if len(s.FilesToModify) > 0 {
					out = append(out, renderList(prefixAll("modify ", s.FilesToModify), 2))
				}
			}
		}
		out = append(out, "")
	}

	if p.TestingStrategy != "" {
		out = append(out, "Testing Strategy:", "  - "+p.TestingStrategy, "")
	}

	if p.DeploymentNotes != "" {
		out = append(out, "Deployment Notes:", "  - "+p.DeploymentNotes, "")
	}

	return strings.Join(out, "\n")
}

type phaseGroup struct {
	phase string
	steps []ImplementationStep
}

// groupByPhase groups steps by phase in first-seen order. Steps without a
// phase land in "unspecified".
func groupByPhase(steps []ImplementationStep) []phaseGroup {
	var groups []phaseGroup
	index := map[string]int{}
	for _, s := range steps {
		key := s.Phase
		if key == "" {
			key = "unspecified"
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, phaseGroup{phase: key})
		}
		groups[i].steps = append(groups[i].steps, s)
	}
	return groups
}

func renderList(items []string, indent int) string {
	pad := strings.Repeat("  ", indent)
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = pad + "- " + item
	}
	return strings.Join(lines, "\n")
}

func prefixAll(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + item
	}
	return out
}

// FileTree flattens a nested file structure into slash-joined paths in
// document order. Every key yields a line; object and array values are
// descended into with the key appended to the prefix.
func FileTree(structure []byte) []string {
	var lines []string
	walkTree(structure, "", &lines)
	return lines
}

func walkTree(data []byte, prefix string, lines *[]string) {
	visit := func(key string, value []byte, dataType jsonparser.ValueType) {
		full := key
		if prefix != "" {
			full = prefix + "/" + key
		}
		*lines = append(*lines, full)
		if dataType == jsonparser.Object || dataType == jsonparser.Array {
			walkTree(value, full, lines)
		}
	}

	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		_ = jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
			name, err := jsonparser.ParseString(key)
			if err != nil {
				name = string(key)
			}
			visit(name, value, dataType)
			return nil
		})
	case strings.HasPrefix(trimmed, "["):
		i := 0
		_, _ = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
			visit(strconv.Itoa(i), value, dataType)
			i++
		})
	}
}
