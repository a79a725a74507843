package vertex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Geometry is source data for one mesh as supplied by the asset layer.
// Version changes whenever any stream or index changes.
type Geometry struct {
	Version uint64
	Format  Format
	Streams map[Semantic][]float32
	Indices []uint32
}

// VertexCount derives the vertex count from the position stream.
func (g Geometry) VertexCount() int {
	a, ok := g.Format.Attribute(Position)
	if !ok || a.Size == 0 {
		return 0
	}
	return len(g.Streams[Position]) / a.Size
}

// Validate checks that every declared attribute has a complete stream, that
// no undeclared stream is present and that all indices address a vertex.
func (g Geometry) Validate() error {
	if err := g.Format.Validate(); err != nil {
		return err
	}
	n := g.VertexCount()
	for _, a := range g.Format.Attributes {
		s, ok := g.Streams[a.Semantic]
		if !ok {
			return fmt.Errorf("%w: missing %v stream", ErrAttributeMismatch, a.Semantic)
		}
		if len(s) != n*a.Size {
			return fmt.Errorf("%w: %v has %d floats, want %d", ErrAttributeMismatch, a.Semantic, len(s), n*a.Size)
		}
	}
	for sem := range g.Streams {
		if _, ok := g.Format.Attribute(sem); !ok {
			return fmt.Errorf("%w: stream %v not in format %v", ErrUnknownAttribute, sem, g.Format)
		}
	}
	for i, idx := range g.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: indices[%d] = %d with %d vertices", ErrIndexOutOfRange, i, idx, n)
		}
	}
	return nil
}

// Interleave lays the streams out vertex by vertex in format order.
func Interleave(g Geometry) ([]float32, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	n := g.VertexCount()
	stride := g.Format.Stride()
	out := make([]float32, n*stride)
	off := 0
	for _, a := range g.Format.Attributes {
		src := g.Streams[a.Semantic]
		for v := 0; v < n; v++ {
			copy(out[v*stride+off:v*stride+off+a.Size], src[v*a.Size:(v+1)*a.Size])
		}
		off += a.Size
	}
	return out, nil
}

// IndexWidth is the byte size of one packed index.
type IndexWidth uint8

const (
	Index8  IndexWidth = 1
	Index16 IndexWidth = 2
	Index32 IndexWidth = 4
)

func (w IndexWidth) String() string {
	return fmt.Sprintf("u%d", int(w)*8)
}

// IndexWidthFor picks the narrowest width able to address maxIndex.
func IndexWidthFor(maxIndex uint32) IndexWidth {
	switch {
	case maxIndex <= math.MaxUint8:
		return Index8
	case maxIndex <= math.MaxUint16:
		return Index16
	}
	return Index32
}

// PackIndices encodes indices little-endian at the narrowest sufficient width.
func PackIndices(indices []uint32) ([]byte, IndexWidth) {
	var hi uint32
	for _, i := range indices {
		hi = max(hi, i)
	}
	w := IndexWidthFor(hi)
	out := make([]byte, len(indices)*int(w))
	for k, i := range indices {
		switch w {
		case Index8:
			out[k] = byte(i)
		case Index16:
			binary.LittleEndian.PutUint16(out[2*k:], uint16(i))
		default:
			binary.LittleEndian.PutUint32(out[4*k:], i)
		}
	}
	return out, w
}

// SmoothNormals computes per-vertex normals for a triangle list by averaging
// the face normals of every triangle touching a vertex. positions holds xyz
// triples; a nil indices slice means consecutive triangles.
func SmoothNormals(positions []float32, indices []uint32) []float32 {
	n := len(positions) / 3
	at := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{positions[3*i], positions[3*i+1], positions[3*i+2]}
	}
	if indices == nil {
		indices = make([]uint32, n-n%3)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	acc := make([]mgl32.Vec3, n)
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		face := at(b).Sub(at(a)).Cross(at(c).Sub(at(a)))
		acc[a] = acc[a].Add(face)
		acc[b] = acc[b].Add(face)
		acc[c] = acc[c].Add(face)
	}
	out := make([]float32, 3*n)
	for i, v := range acc {
		if v.Len() > 0 {
			v = v.Normalize()
		}
		copy(out[3*i:], v[:])
	}
	return out
}
