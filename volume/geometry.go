package volume

import "fmt"

// Geometry describes the extents of a 3D voxel grid.
// It is an immutable value; input and output of a pixel-wise stage
// always share the same geometry.
type Geometry struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// NumVoxels returns the total number of voxels in the grid.
func (g Geometry) NumVoxels() int {
	return int(g.Width) * int(g.Height) * int(g.Depth)
}

// Validate checks that every extent is non-zero.
func (g Geometry) Validate() error {
	if g.Width == 0 || g.Height == 0 || g.Depth == 0 {
		return fmt.Errorf("volume: invalid geometry %v (all extents must be > 0)", g)
	}
	return nil
}

// Equal checks if two geometries are equal.
func (g Geometry) Equal(other Geometry) bool {
	return g.Width == other.Width && g.Height == other.Height && g.Depth == other.Depth
}

// LinearIndex maps a 3D coordinate to the linear offset inside a flat
// buffer laid out x-fastest: x + y*width + z*width*height.
func (g Geometry) LinearIndex(x, y, z uint32) int {
	return int(x) + int(y)*int(g.Width) + int(z)*int(g.Width)*int(g.Height)
}

// String returns a human-readable form like "64x32x16".
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d", g.Width, g.Height, g.Depth)
}
