package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultDimension is the dimension tag of a Vector created without one.
const DefaultDimension = "WORLD"

// Vector is a position in a dimension of a world.
type Vector struct {
	mgl32.Vec3
	Dimension string
}

// NewVector returns a Vector in the default dimension.
func NewVector(x, y, z float32) Vector {
	return Vector{Vec3: mgl32.Vec3{x, y, z}, Dimension: DefaultDimension}
}

// Add returns the sum of v and o. The dimension of v is kept.
func (v Vector) Add(o Vector) Vector {
	return Vector{Vec3: v.Vec3.Add(o.Vec3), Dimension: v.Dimension}
}

// Sub returns v minus o. The dimension of v is kept.
func (v Vector) Sub(o Vector) Vector {
	return Vector{Vec3: v.Vec3.Sub(o.Vec3), Dimension: v.Dimension}
}

// Distance returns the euclidean distance between v and o.
func (v Vector) Distance(o Vector) float32 {
	return v.Vec3.Sub(o.Vec3).Len()
}

// String ...
func (v Vector) String() string {
	return fmt.Sprintf("(%v, %v, %v)", v.X(), v.Y(), v.Z())
}

// Location is a Vector with a rotation, optionally in a named World. The World
// field only identifies the world: it does not keep it loaded.
type Location struct {
	Vector
	Yaw, Pitch float32
	World      string
}

// NewLocation returns a Location at the block coordinates passed in the World
// with the name passed.
func NewLocation(world string, x, y, z int32) Location {
	return Location{Vector: NewVector(float32(x), float32(y), float32(z)), World: world}
}

// Block returns the integer block coordinates of the Location.
func (l Location) Block() [3]int32 {
	return [3]int32{int32(floor(l.X())), int32(floor(l.Y())), int32(floor(l.Z()))}
}

func floor(f float32) float32 {
	i := float32(int32(f))
	if f < i {
		return i - 1
	}
	return i
}
