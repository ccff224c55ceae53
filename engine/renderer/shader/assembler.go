// Package shader assembles WGSL modules from bind group declarations, vertex attributes and
// material-supplied bodies. It also expands chunk includes, finds entry points, reports compile
// diagnostics and watches shader files for hot reload.
package shader

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrDeclarationConflict is returned by Assemble when two different bindings declare the same
// module scope identifier, or one struct name is declared with two different bodies.
var ErrDeclarationConflict = errors.New("conflicting shader declaration")

// Heads holds the generated declarations prepended to each stage body. Full carries every
// vertex or fragment visible declaration and is used when both stages share one module.
type Heads struct {
	Vertex   string
	Fragment string
	Compute  string
	Full     string
}

// Stage returns the head assembled for the given stage.
func (h Heads) Stage(s Stage) string {
	switch s {
	case StageVertex:
		return h.Vertex
	case StageFragment:
		return h.Fragment
	case StageCompute:
		return h.Compute
	}
	return ""
}

// head accumulates the declarations of one stage. Module scope identifiers are declared at most
// once. A variable is only declared again by the binding that owns it; a struct type only with the
// same text.
type head struct {
	name       string
	visibility wgpu.ShaderStage
	sb         strings.Builder
	// types maps a declared struct name to its text.
	types map[string]string
	// vars maps a declared variable name to the binding that declared it.
	vars map[string]binding.Binding
}

func newHead(name string, visibility wgpu.ShaderStage) *head {
	return &head{
		name:       name,
		visibility: visibility,
		types:      make(map[string]string),
		vars:       make(map[string]binding.Binding),
	}
}

func (h *head) add(d bind_group.Declaration) error {
	if d.Visibility&h.visibility == 0 {
		return nil
	}
	for _, td := range d.TypeDecls {
		prev, ok := h.types[td.Name]
		if ok {
			if prev != td.Text {
				return fmt.Errorf("%w: %s stage declares struct %s twice with different fields (group %d binding %d)",
					ErrDeclarationConflict, h.name, td.Name, d.Group, d.Binding)
			}
			continue
		}
		h.types[td.Name] = td.Text
		h.sb.WriteString(td.Text)
		h.sb.WriteString("\n")
	}
	if owner, ok := h.vars[d.Name]; ok {
		if owner != d.Owner {
			return fmt.Errorf("%w: %s stage declares %s from two bindings (group %d binding %d)",
				ErrDeclarationConflict, h.name, d.Name, d.Group, d.Binding)
		}
		return nil
	}
	h.vars[d.Name] = d.Owner
	fmt.Fprintf(&h.sb, "@group(%d) @binding(%d) %s\n", d.Group, d.Binding, d.VarDecl)
	return nil
}

func (h *head) String() string {
	return strings.TrimSuffix(h.sb.String(), "\n")
}

// Assemble builds the per-stage declaration heads for a set of bind groups. Groups are walked in
// ascending index order and bindings in slot order; a binding shared by two groups is declared
// once per stage, at its first slot. Two different bindings that declare the same name in one
// stage fail with ErrDeclarationConflict. attributeText, the geometry's vertex input struct, is
// prepended to the vertex and full heads.
//
// Parameters:
//   - groups: the bind groups the pipeline is laid out against
//   - attributeText: the vertex input struct declaration, empty for compute
//
// Returns:
//   - Heads: the generated heads
//   - error: ErrDeclarationConflict naming the stage and the identifier
func Assemble(groups []bind_group.BindGroup, attributeText string) (Heads, error) {
	ordered := slices.Clone(groups)
	slices.SortStableFunc(ordered, func(a, b bind_group.BindGroup) int {
		return a.Index() - b.Index()
	})

	vertex := newHead(StageVertex.String(), wgpu.ShaderStageVertex)
	fragment := newHead(StageFragment.String(), wgpu.ShaderStageFragment)
	compute := newHead(StageCompute.String(), wgpu.ShaderStageCompute)
	full := newHead("full", wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)

	for _, g := range ordered {
		for _, d := range g.Declarations() {
			for _, h := range []*head{vertex, fragment, compute, full} {
				if err := h.add(d); err != nil {
					return Heads{}, err
				}
			}
		}
	}

	heads := Heads{
		Vertex:   vertex.String(),
		Fragment: fragment.String(),
		Compute:  compute.String(),
		Full:     full.String(),
	}
	if attributeText != "" {
		heads.Vertex = joinHead(attributeText, heads.Vertex)
		heads.Full = joinHead(attributeText, heads.Full)
	}
	return heads, nil
}

func joinHead(prefix, rest string) string {
	if rest == "" {
		return prefix
	}
	return prefix + "\n" + rest
}
