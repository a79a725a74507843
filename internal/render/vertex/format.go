// Package vertex assembles per-mesh attribute streams into interleaved,
// backend-ready vertex buffers and caches them by mesh.
package vertex

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrAttributeMismatch = errors.New("vertex: attribute stream does not match format")
	ErrUnknownAttribute  = errors.New("vertex: unknown attribute")
	ErrIndexOutOfRange   = errors.New("vertex: index out of range")
)

// Semantic names what an attribute carries.
type Semantic uint8

const (
	Position Semantic = iota
	Normal
	TexCoord
	Color
	Tangent
)

var semanticNames = [...]string{"position", "normal", "texcoord", "color", "tangent"}

func (s Semantic) String() string {
	if int(s) < len(semanticNames) {
		return semanticNames[s]
	}
	return "semantic(" + strconv.Itoa(int(s)) + ")"
}

// ParseSemantic is the inverse of Semantic.String.
func ParseSemantic(name string) (Semantic, error) {
	for i, n := range semanticNames {
		if n == name {
			return Semantic(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

// Attribute is one float32 vector of Size components within a vertex.
type Attribute struct {
	Semantic Semantic
	Size     int
}

// Format is an ordered vertex layout. Every mesh carries its own.
type Format struct {
	Attributes []Attribute
}

var (
	Format2D        = Format{Attributes: []Attribute{{Position, 2}, {TexCoord, 2}}}
	Format3D        = Format{Attributes: []Attribute{{Position, 3}, {Normal, 3}, {TexCoord, 2}}}
	FormatColored2D = Format{Attributes: []Attribute{{Position, 2}, {Color, 4}}}
)

// Stride is the vertex size in float32 components.
func (f Format) Stride() int {
	n := 0
	for _, a := range f.Attributes {
		n += a.Size
	}
	return n
}

// StrideBytes is the vertex size in bytes.
func (f Format) StrideBytes() int { return f.Stride() * 4 }

// Offset returns the float offset of sem within a vertex.
func (f Format) Offset(sem Semantic) (int, bool) {
	off := 0
	for _, a := range f.Attributes {
		if a.Semantic == sem {
			return off, true
		}
		off += a.Size
	}
	return 0, false
}

func (f Format) Attribute(sem Semantic) (Attribute, bool) {
	for _, a := range f.Attributes {
		if a.Semantic == sem {
			return a, true
		}
	}
	return Attribute{}, false
}

// Equal reports whether two formats describe the same layout.
func (f Format) Equal(o Format) bool {
	if len(f.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range f.Attributes {
		if f.Attributes[i] != o.Attributes[i] {
			return false
		}
	}
	return true
}

// Validate rejects empty layouts, repeated semantics, sizes outside 1..4 and
// layouts without a position.
func (f Format) Validate() error {
	if len(f.Attributes) == 0 {
		return fmt.Errorf("%w: empty format", ErrAttributeMismatch)
	}
	var seen [len(semanticNames)]bool
	for _, a := range f.Attributes {
		if int(a.Semantic) >= len(semanticNames) {
			return fmt.Errorf("%w: %v", ErrUnknownAttribute, a.Semantic)
		}
		if seen[a.Semantic] {
			return fmt.Errorf("%w: %v declared twice", ErrAttributeMismatch, a.Semantic)
		}
		seen[a.Semantic] = true
		if a.Size < 1 || a.Size > 4 {
			return fmt.Errorf("%w: %v has size %d", ErrAttributeMismatch, a.Semantic, a.Size)
		}
	}
	if !seen[Position] {
		return fmt.Errorf("%w: format has no position", ErrAttributeMismatch)
	}
	return nil
}

// String renders the layout as "position:3,normal:3,texcoord:2".
func (f Format) String() string {
	parts := make([]string, len(f.Attributes))
	for i, a := range f.Attributes {
		parts[i] = a.Semantic.String() + ":" + strconv.Itoa(a.Size)
	}
	return strings.Join(parts, ",")
}

// ParseFormat accepts a preset name ("2d", "3d", "colored2d") or an explicit
// layout in the form produced by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2d":
		return Format2D, nil
	case "3d", "":
		return Format3D, nil
	case "colored2d":
		return FormatColored2D, nil
	}
	var f Format
	for _, part := range strings.Split(s, ",") {
		name, size, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return Format{}, fmt.Errorf("%w: malformed attribute %q", ErrAttributeMismatch, part)
		}
		sem, err := ParseSemantic(name)
		if err != nil {
			return Format{}, err
		}
		n, err := strconv.Atoi(size)
		if err != nil {
			return Format{}, fmt.Errorf("%w: size of %s: %v", ErrAttributeMismatch, name, err)
		}
		f.Attributes = append(f.Attributes, Attribute{Semantic: sem, Size: n})
	}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}
