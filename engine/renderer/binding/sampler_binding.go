package binding

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// SamplerBinding is a standalone sampler.
type SamplerBinding interface {
	Binding

	// Sampler returns the GPU sampler, or nil before Create.
	//
	// Returns:
	//   - backend.Sampler: the sampler or nil
	Sampler() backend.Sampler

	// SetSampler stages a new sampler configuration. The next Update swaps the GPU sampler.
	//
	// Parameters:
	//   - data: the sampler configuration
	SetSampler(data common.SamplerStagingData)
}

type samplerBinding struct {
	name       string
	visibility wgpu.ShaderStage
	data       common.SamplerStagingData
	dirty      bool
	sampler    backend.Sampler
}

var _ SamplerBinding = &samplerBinding{}

// NewSamplerBinding creates a sampler binding. A configuration with a Compare function declares a
// comparison sampler.
//
// Parameters:
//   - name: the WGSL variable name
//   - data: the sampler configuration; zero fields default to linear filtering with repeat addressing
//   - visibility: the stages the sampler is declared in, or ShaderStageNone for fragment only
//
// Returns:
//   - SamplerBinding: the new binding
func NewSamplerBinding(name string, data common.SamplerStagingData, visibility wgpu.ShaderStage) SamplerBinding {
	return &samplerBinding{
		name:       name,
		data:       data,
		visibility: common.Coalesce(visibility, wgpu.ShaderStageFragment),
	}
}

func (s *samplerBinding) Name() string                 { return s.name }
func (s *samplerBinding) Kind() Kind                   { return KindSampler }
func (s *samplerBinding) Visibility() wgpu.ShaderStage { return s.visibility }
func (s *samplerBinding) Sampler() backend.Sampler     { return s.sampler }
func (s *samplerBinding) Ready() bool                  { return true }
func (s *samplerBinding) Created() bool                { return s.sampler != nil }

func (s *samplerBinding) SetSampler(data common.SamplerStagingData) {
	s.data = data
	s.dirty = true
}

func (s *samplerBinding) Fragments() []Fragment {
	return []Fragment{samplerFragment(s.name, s.visibility, s.data)}
}

func (s *samplerBinding) Create(b backend.Backend) error {
	if s.sampler != nil {
		return nil
	}
	samp, err := createSampler(b, s.name, s.data)
	if err != nil {
		return err
	}
	s.sampler = samp
	s.dirty = false
	return nil
}

func (s *samplerBinding) Resources() []backend.BindGroupEntry {
	return []backend.BindGroupEntry{{Sampler: s.sampler}}
}

func (s *samplerBinding) Update(b backend.Backend) (Change, error) {
	if !s.dirty || s.sampler == nil {
		return ChangeNone, nil
	}
	samp, err := createSampler(b, s.name, s.data)
	if err != nil {
		return ChangeNone, err
	}
	s.sampler.Release()
	s.sampler = samp
	s.dirty = false
	return ChangeResource, nil
}

func (s *samplerBinding) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

func (s *samplerBinding) LoseContext() {
	s.sampler = nil
}

func isComparison(data common.SamplerStagingData) bool {
	return data.Compare != wgpu.CompareFunctionUndefined
}

func samplerFragment(name string, visibility wgpu.ShaderStage, data common.SamplerStagingData) Fragment {
	wgslType, bindingType := "sampler", wgpu.SamplerBindingTypeFiltering
	if isComparison(data) {
		wgslType, bindingType = "sampler_comparison", wgpu.SamplerBindingTypeComparison
	}
	return Fragment{
		Name:       name,
		VarDecl:    fmt.Sprintf("var %s: %s;", name, wgslType),
		Visibility: visibility,
		Layout: wgpu.BindGroupLayoutEntry{
			Visibility: visibility,
			Sampler:    wgpu.SamplerBindingLayout{Type: bindingType},
		},
	}
}

func createSampler(b backend.Backend, name string, data common.SamplerStagingData) (backend.Sampler, error) {
	samp, err := b.CreateSampler(backend.SamplerDescriptor{
		Label:              name + " Sampler",
		SamplerStagingData: data,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler %s: %w", name, err)
	}
	return samp, nil
}
