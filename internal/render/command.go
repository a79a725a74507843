package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

// Command is one abstract backend instruction. The set is closed.
type Command interface {
	command()
	String() string
}

// SetView carries the camera matrices; it leads a frame when a camera exists.
type SetView struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Eye        mgl32.Vec3
}

type BindMaterial struct {
	Material MaterialHandle
}

// BindVertexBuffer references a cached interleaved buffer by handle.
type BindVertexBuffer struct {
	Mesh   MeshHandle
	Ref    vertex.BufferRef
	Buffer *vertex.Buffer
}

// TransformRef names one group's dynamic transform buffer. Version increases
// whenever the contents must be uploaded again.
type TransformRef struct {
	Mesh     MeshHandle
	Material MaterialHandle
	Version  uint64
}

// TransformBuffer holds instance matrices in draw order. Upload is false when
// the backend's copy at Ref is still current.
type TransformBuffer struct {
	Ref    TransformRef
	Data   []mgl32.Mat4
	Upload bool
}

type Draw struct {
	Mesh          MeshHandle
	Material      MaterialHandle
	InstanceCount int
	IndexCount    int
	Transforms    TransformBuffer
}

func (SetView) command()          {}
func (BindMaterial) command()     {}
func (BindVertexBuffer) command() {}
func (Draw) command()             {}

func (c SetView) String() string      { return fmt.Sprintf("SetView(eye=%v)", c.Eye) }
func (c BindMaterial) String() string { return fmt.Sprintf("BindMaterial(%d)", c.Material) }
func (c BindVertexBuffer) String() string {
	return fmt.Sprintf("BindVertexBuffer(%d %v)", c.Mesh, c.Ref)
}
func (c Draw) String() string {
	return fmt.Sprintf("Draw(mesh=%d material=%d count=%d upload=%v)",
		c.Mesh, c.Material, c.InstanceCount, c.Transforms.Upload)
}

// Stats counts what a frame build did.
type Stats struct {
	Groups        int
	Instances     int
	Uploads       int
	SkippedBinds  int
	MissingMeshes int
}

// Frame is the ordered command list for one frame. It is rebuilt from
// component state every frame and never reused.
type Frame struct {
	Number   uint64
	Commands []Command
	Stats    Stats
}

// Draws counts the Draw commands in f.
func (f Frame) Draws() int {
	n := 0
	for _, c := range f.Commands {
		if _, ok := c.(Draw); ok {
			n++
		}
	}
	return n
}
