package binding

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// Range is a byte range of a binding's backing memory.
type Range struct {
	Offset int
	Count  int
}

// BufferBinding is a uniform or storage struct whose layout is computed once from its declared fields.
// Inputs may be changed at any time; Serialize writes the changed ones into the backing memory and
// Update uploads it.
type BufferBinding interface {
	Binding

	// Access returns the shader access mode. Uniform bindings are always read.
	//
	// Returns:
	//   - Access: the access mode
	Access() Access

	// StructName returns the WGSL struct type name of the binding.
	//
	// Returns:
	//   - string: the type name
	StructName() string

	// Layout returns the computed struct layout.
	//
	// Returns:
	//   - *layout.StructLayout: the layout, immutable after construction
	Layout() *layout.StructLayout

	// Arena returns the backing memory.
	//
	// Returns:
	//   - *layout.Arena: the backing memory, sized to the layout
	Arena() *layout.Arena

	// Input returns a named input.
	//
	// Parameters:
	//   - name: the field name
	//
	// Returns:
	//   - *Input: the input
	//   - bool: false if no such input exists
	Input(name string) (*Input, bool)

	// Inputs returns every input in declaration order.
	//
	// Returns:
	//   - []*Input: the inputs
	Inputs() []*Input

	// Set replaces a named input's value.
	//
	// Parameters:
	//   - name: the field name
	//   - v: the new value
	//
	// Returns:
	//   - error: ErrUnknownInput if no such input exists
	Set(name string, v layout.Value) error

	// Serialize writes every dirty input into the backing memory and clears its flag. A second call
	// with no intervening Set writes nothing.
	//
	// Returns:
	//   - []Range: the byte ranges written by this call
	//   - error: the joined write errors, if any
	Serialize() ([]Range, error)

	// ShouldUpdate reports whether serialized data is waiting to be uploaded.
	//
	// Returns:
	//   - bool: true if the next Update uploads
	ShouldUpdate() bool

	// Buffer returns the GPU buffer, or nil before Create.
	//
	// Returns:
	//   - backend.Buffer: the buffer or nil
	Buffer() backend.Buffer

	// ReadBack copies the GPU buffer into the backing memory and refreshes every input's value from it.
	// Refreshed inputs are not marked dirty.
	//
	// Parameters:
	//   - b: the backend to read with
	//
	// Returns:
	//   - error: ErrNoCopyBack or ErrNotCreated when the binding cannot be read, or the read error
	ReadBack(b backend.Backend) error

	// DeclarationText returns the struct declarations and the variable declaration, without
	// @group/@binding attributes.
	//
	// Returns:
	//   - string: the WGSL text
	DeclarationText() string
}

type bufferBinding struct {
	name       string
	structName string
	kind       Kind
	access     Access
	visibility wgpu.ShaderStage

	fields     []layout.Field
	initial    map[string]layout.Value
	layoutOpts []layout.StructLayoutOption

	layout     *layout.StructLayout
	arena      *layout.Arena
	inputs     []*Input
	inputIndex map[string]*Input
	hook       SerializeHook

	shouldUpdate   bool
	partialUploads bool
	pending        []Range

	copyBack bool
	buffer   backend.Buffer
	readback backend.Buffer
}

var _ BufferBinding = &bufferBinding{}

// NewBufferBinding creates a uniform binding, or a storage binding with WithStorage, and computes its
// layout from the fields added with WithField.
//
// Parameters:
//   - name: the WGSL variable name of the binding
//   - options: functional options for fields, kind, visibility and upload behavior
//
// Returns:
//   - BufferBinding: the new binding
//   - error: a layout error such as layout.ErrUnequalArrayLengths
func NewBufferBinding(name string, options ...BufferBindingBuilderOption) (BufferBinding, error) {
	b := &bufferBinding{
		name:       name,
		structName: exportedName(name),
		kind:       KindUniform,
		initial:    make(map[string]layout.Value),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.visibility == wgpu.ShaderStageNone {
		b.visibility = defaultVisibility(b.kind)
	}
	if b.kind == KindUniform {
		b.access = AccessRead
		b.copyBack = false
	}

	l, err := layout.NewStructLayout(b.fields, b.layoutOpts...)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", name, err)
	}
	b.layout = l
	b.arena = l.NewArena()
	b.inputIndex = make(map[string]*Input, len(b.fields))
	for _, f := range b.fields {
		in := newInput(f.Name, f.Type, b.initial[f.Name])
		b.inputs = append(b.inputs, in)
		b.inputIndex[f.Name] = in
	}
	b.initial = nil
	return b, nil
}

func defaultVisibility(k Kind) wgpu.ShaderStage {
	if k == KindStorage {
		return wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
}

// exportedName turns a variable name into a type name: "camera" becomes "Camera".
func exportedName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (b *bufferBinding) Name() string {
	return b.name
}

func (b *bufferBinding) Kind() Kind {
	return b.kind
}

func (b *bufferBinding) Access() Access {
	return b.access
}

func (b *bufferBinding) Visibility() wgpu.ShaderStage {
	return b.visibility
}

func (b *bufferBinding) StructName() string {
	return b.structName
}

func (b *bufferBinding) Layout() *layout.StructLayout {
	return b.layout
}

func (b *bufferBinding) Arena() *layout.Arena {
	return b.arena
}

func (b *bufferBinding) Input(name string) (*Input, bool) {
	in, ok := b.inputIndex[name]
	return in, ok
}

func (b *bufferBinding) Inputs() []*Input {
	return b.inputs
}

func (b *bufferBinding) Set(name string, v layout.Value) error {
	in, ok := b.inputIndex[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownInput, b.name, name)
	}
	in.Set(v)
	return nil
}

func (b *bufferBinding) Serialize() ([]Range, error) {
	var ranges []Range
	var errs []error
	for _, in := range b.inputs {
		if !in.shouldUpdate {
			continue
		}
		if b.hook != nil {
			b.hook(in)
		}
		elem, _ := b.layout.Field(in.name)
		if err := elem.Write(b.arena, in.value); err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", b.name, err))
		}
		in.shouldUpdate = false
		ranges = append(ranges, Range{Offset: elem.ByteOffset(), Count: elem.ByteCount()})
	}
	if len(ranges) > 0 {
		b.shouldUpdate = true
		b.pending = mergeRanges(append(b.pending, ranges...))
	}
	return ranges, errors.Join(errs...)
}

// mergeRanges sorts ranges and coalesces overlapping or touching ones.
func mergeRanges(ranges []Range) []Range {
	slices.SortFunc(ranges, func(a, b Range) int { return a.Offset - b.Offset })
	out := ranges[:0]
	for _, r := range ranges {
		if n := len(out); n > 0 && r.Offset <= out[n-1].Offset+out[n-1].Count {
			end := max(out[n-1].Offset+out[n-1].Count, r.Offset+r.Count)
			out[n-1].Count = end - out[n-1].Offset
			continue
		}
		out = append(out, r)
	}
	return out
}

func (b *bufferBinding) ShouldUpdate() bool {
	return b.shouldUpdate
}

func (b *bufferBinding) Buffer() backend.Buffer {
	return b.buffer
}

func (b *bufferBinding) Ready() bool {
	return true
}

func (b *bufferBinding) Created() bool {
	return b.buffer != nil
}

func (b *bufferBinding) usage() wgpu.BufferUsage {
	if b.kind == KindStorage {
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		if b.copyBack {
			usage |= wgpu.BufferUsageCopySrc
		}
		return usage
	}
	return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
}

// Create allocates the GPU buffer, and the readback buffer for copy-back bindings, then uploads the
// whole backing memory.
func (b *bufferBinding) Create(be backend.Backend) error {
	size := uint64(b.layout.Size())
	if b.buffer == nil {
		buf, err := be.CreateBuffer(backend.BufferDescriptor{
			Label: b.name + " Buffer",
			Size:  size,
			Usage: b.usage(),
		})
		if err != nil {
			return fmt.Errorf("binding %s: %w", b.name, err)
		}
		b.buffer = buf

		if _, err := b.Serialize(); err != nil {
			return err
		}
		if err := be.WriteBuffer(b.buffer, 0, b.arena.Bytes()); err != nil {
			return fmt.Errorf("binding %s: %w", b.name, err)
		}
		b.pending = nil
		b.shouldUpdate = false
	}
	if b.copyBack && b.readback == nil {
		rb, err := be.CreateBuffer(backend.BufferDescriptor{
			Label: b.name + " Readback Buffer",
			Size:  size,
			Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("binding %s readback: %w", b.name, err)
		}
		b.readback = rb
	}
	return nil
}

func (b *bufferBinding) Update(be backend.Backend) (Change, error) {
	if _, err := b.Serialize(); err != nil {
		return ChangeNone, err
	}
	if !b.shouldUpdate {
		return ChangeNone, nil
	}
	if b.buffer == nil {
		return ChangeNone, fmt.Errorf("binding %s: %w", b.name, ErrNotCreated)
	}

	if b.partialUploads {
		for _, r := range b.pending {
			data, err := b.arena.Slice(r.Offset, r.Count)
			if err != nil {
				return ChangeNone, err
			}
			if err := be.WriteBuffer(b.buffer, uint64(r.Offset), data); err != nil {
				return ChangeNone, fmt.Errorf("binding %s: %w", b.name, err)
			}
		}
	} else if err := be.WriteBuffer(b.buffer, 0, b.arena.Bytes()); err != nil {
		return ChangeNone, fmt.Errorf("binding %s: %w", b.name, err)
	}

	b.pending = nil
	b.shouldUpdate = false
	return ChangeNone, nil
}

func (b *bufferBinding) ReadBack(be backend.Backend) error {
	if !b.copyBack {
		return fmt.Errorf("binding %s: %w", b.name, ErrNoCopyBack)
	}
	if b.buffer == nil || b.readback == nil {
		return fmt.Errorf("binding %s: %w", b.name, ErrNotCreated)
	}
	data, err := be.ReadBuffer(b.buffer, b.readback)
	if err != nil {
		return fmt.Errorf("binding %s: %w", b.name, err)
	}
	copy(b.arena.Bytes(), data)

	for _, in := range b.inputs {
		elem, _ := b.layout.Field(in.name)
		v, err := elem.Read(b.arena)
		if err != nil {
			return err
		}
		in.value = v
	}
	return nil
}

func (b *bufferBinding) varDecl() string {
	if b.kind == KindStorage {
		return fmt.Sprintf("var<storage, %s> %s: %s;", b.access, b.name, b.structName)
	}
	return fmt.Sprintf("var<uniform> %s: %s;", b.name, b.structName)
}

func (b *bufferBinding) layoutEntry() wgpu.BindGroupLayoutEntry {
	bufferType := wgpu.BufferBindingTypeUniform
	if b.kind == KindStorage {
		bufferType = wgpu.BufferBindingTypeReadOnlyStorage
		if b.access == AccessReadWrite {
			bufferType = wgpu.BufferBindingTypeStorage
		}
	}
	return wgpu.BindGroupLayoutEntry{
		Visibility: b.visibility,
		Buffer: wgpu.BufferBindingLayout{
			Type:           bufferType,
			MinBindingSize: uint64(b.layout.Size()),
		},
	}
}

func (b *bufferBinding) Fragments() []Fragment {
	return []Fragment{{
		Name:       b.name,
		TypeDecls:  b.layout.TypeDecls(b.structName),
		VarDecl:    b.varDecl(),
		Visibility: b.visibility,
		Layout:     b.layoutEntry(),
	}}
}

func (b *bufferBinding) DeclarationText() string {
	var sb strings.Builder
	for _, d := range b.layout.TypeDecls(b.structName) {
		sb.WriteString(d.Text)
		sb.WriteString("\n")
	}
	sb.WriteString(b.varDecl())
	return sb.String()
}

func (b *bufferBinding) Resources() []backend.BindGroupEntry {
	return []backend.BindGroupEntry{{
		Buffer: b.buffer,
		Size:   uint64(b.layout.Size()),
	}}
}

func (b *bufferBinding) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
	if b.readback != nil {
		b.readback.Release()
		b.readback = nil
	}
	common.Logger().Debug("released buffer binding", "binding", b.name)
}

// LoseContext drops the buffers. The backing memory is kept, so the next Create re-uploads it.
func (b *bufferBinding) LoseContext() {
	b.buffer = nil
	b.readback = nil
	b.pending = nil
	b.shouldUpdate = false
}
