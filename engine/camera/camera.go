package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
)

// BindingName is the WGSL variable the camera uniform is declared as. Shaders read
// camera.viewProj, camera.inverseProj and camera.position.
const BindingName = "camera"

type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix              common.Mat4
	projectionMatrix        common.Mat4
	viewProjectionMatrix    common.Mat4
	inverseProjectionMatrix common.Mat4

	groupIndex int
	uniform    binding.BufferBinding
	group      bind_group.BindGroup
}

// Camera holds perspective settings and a look-at pose, and keeps a uniform bind group with its
// matrices current. The bind group is meant to be registered once as a shared group on the
// renderer and handed to every material that draws through the camera.
type Camera interface {
	// Position returns the eye position.
	//
	// Returns:
	//   - x, y, z: the eye position in world space
	Position() (x, y, z float32)

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - x, y, z: the target in world space
	Target() (x, y, z float32)

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// ViewProjectionMatrix returns projection * view.
	//
	// Returns:
	//   - common.Mat4: the column-major matrix
	ViewProjectionMatrix() common.Mat4

	// InverseProjectionMatrix returns the inverse of the projection matrix.
	//
	// Returns:
	//   - common.Mat4: the column-major matrix
	InverseProjectionMatrix() common.Mat4

	// BindGroup returns the uniform bind group carrying the camera matrices.
	//
	// Returns:
	//   - bind_group.BindGroup: the camera group
	BindGroup() bind_group.BindGroup

	// SetPosition moves the eye.
	//
	// Parameters:
	//   - x, y, z: the new eye position
	SetPosition(x, y, z float32)

	// SetTarget changes the look-at point.
	//
	// Parameters:
	//   - x, y, z: the new target
	SetTarget(x, y, z float32)

	// SetFov sets the vertical field of view.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio, normally after a resize.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera looking from (0, 0, 3) at the origin with a 45 degree field of view.
//
// Parameters:
//   - options: functional options for pose, projection and group index
//
// Returns:
//   - Camera: the camera
//   - error: an error if the uniform binding cannot be laid out
func NewCamera(options ...CameraBuilderOption) (Camera, error) {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 3},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0),
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()

	uniform, err := binding.NewBufferBinding(BindingName,
		binding.WithField("viewProj", layout.Of(layout.TypeMat4x4f), layout.Mat4(c.viewProjectionMatrix)),
		binding.WithField("inverseProj", layout.Of(layout.TypeMat4x4f), layout.Mat4(c.inverseProjectionMatrix)),
		binding.WithField("position", layout.Of(layout.TypeVec3f), layout.Vec3(c.position[0], c.position[1], c.position[2])),
	)
	if err != nil {
		return nil, err
	}
	c.uniform = uniform
	c.group = bind_group.NewBindGroup(c.groupIndex, bind_group.WithLabel(BindingName), bind_group.WithBindings(uniform))
	return c, nil
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Target() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target[0], c.target[1], c.target[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) ViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) BindGroup() bind_group.BindGroup {
	return c.group
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.refresh()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = [3]float32{x, y, z}
	c.refresh()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.refresh()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.refresh()
}

// refresh recomputes the matrices and stages them on the uniform. The bind group uploads them on
// its next update.
func (c *cameraImpl) refresh() {
	c.updateMatrices()
	values := map[string]layout.Value{
		"viewProj":    layout.Mat4(c.viewProjectionMatrix),
		"inverseProj": layout.Mat4(c.inverseProjectionMatrix),
		"position":    layout.Vec3(c.position[0], c.position[1], c.position[2]),
	}
	for name, v := range values {
		if err := c.uniform.Set(name, v); err != nil {
			common.Logger().Error("failed to stage camera uniform", "field", name, "err", err)
		}
	}
}

func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = common.LookAt(c.position, c.target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul(c.viewMatrix)
	if inv, ok := c.projectionMatrix.Inverse(); ok {
		c.inverseProjectionMatrix = inv
	}
}
