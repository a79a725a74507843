// Package render turns render components in the ECS world into an ordered,
// minimal sequence of backend commands each frame.
package render

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MeshHandle and MaterialHandle are opaque asset references. The asset layer
// owns the data; many entities may share one handle.
type (
	MeshHandle     uint32
	MaterialHandle uint32
)

// Transform places an entity in the world. State is only reachable through
// its methods; setters mark it dirty and the bridge clears the flag once the
// change has been uploaded.
type Transform struct {
	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	dirty bool
}

// NewTransform returns an unrotated, unit-scaled transform at pos. It starts
// dirty.
func NewTransform(pos mgl32.Vec3) Transform {
	return Transform{
		position: pos,
		rotation: mgl32.QuatIdent(),
		scale:    mgl32.Vec3{1, 1, 1},
		dirty:    true,
	}
}

func (t Transform) Position() mgl32.Vec3 { return t.position }
func (t Transform) Rotation() mgl32.Quat { return t.rotation }
func (t Transform) Scale() mgl32.Vec3    { return t.scale }

func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.position = p
	t.dirty = true
}

func (t *Transform) Translate(d mgl32.Vec3) {
	t.position = t.position.Add(d)
	t.dirty = true
}

func (t *Transform) SetRotation(q mgl32.Quat) {
	t.rotation = q
	t.dirty = true
}

// Rotate applies q after the current rotation.
func (t *Transform) Rotate(q mgl32.Quat) {
	t.rotation = q.Mul(t.rotation).Normalize()
	t.dirty = true
}

func (t *Transform) SetScale(s mgl32.Vec3) {
	t.scale = s
	t.dirty = true
}

func (t *Transform) MarkDirty() { t.dirty = true }
func (t Transform) Dirty() bool { return t.dirty }

// Matrix composes translation, rotation and scale (T·R·S).
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.position.X(), t.position.Y(), t.position.Z()).
		Mul4(t.rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.scale.X(), t.scale.Y(), t.scale.Z()))
}

// Hidden excludes an entity from rendering when the bridge is configured to
// honour it.
type Hidden struct{}

// Camera is a look-at view. The earliest-born entity carrying one drives the
// frame's view.
type Camera struct {
	Eye    mgl32.Vec3
	Center mgl32.Vec3
	Up     mgl32.Vec3
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Center, c.Up)
}

// Perspective is an optional companion of Camera. FovY is in radians.
type Perspective struct {
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
}

// DefaultPerspective is used for a camera entity without a Perspective.
var DefaultPerspective = Perspective{
	FovY:   mgl32.DegToRad(45),
	Aspect: 16.0 / 9.0,
	Near:   0.1,
	Far:    100,
}

func (p Perspective) Matrix() mgl32.Mat4 {
	return mgl32.Perspective(p.FovY, p.Aspect, p.Near, p.Far)
}
