// Package pointcloud defines the sensor capture abstraction consumed by the
// voxelizer, plus synthetic cloud generators used by tests and tooling.
package pointcloud

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
)

// Cloud is a read-only view of one sensor capture: points in the sensor
// frame plus the sensor pose in the grid's world frame.
type Cloud interface {
	Size() int
	OriginTransform() geometry.Pose
	Point(i int) r3.Vec
}

// PointsCloud is a slice-backed Cloud.
type PointsCloud struct {
	origin geometry.Pose
	points []r3.Vec
}

// NewCloud wraps a point slice with its sensor pose. The cloud takes
// ownership of the slice.
func NewCloud(origin geometry.Pose, points []r3.Vec) *PointsCloud {
	return &PointsCloud{origin: origin, points: points}
}

// Size returns the number of points.
func (c *PointsCloud) Size() int { return len(c.points) }

// OriginTransform returns the sensor pose in the world frame.
func (c *PointsCloud) OriginTransform() geometry.Pose { return c.origin }

// Point returns the i-th sensor-frame point.
func (c *PointsCloud) Point(i int) r3.Vec { return c.points[i] }

// AppendPoint adds a sensor-frame point.
func (c *PointsCloud) AppendPoint(p r3.Vec) {
	c.points = append(c.points, p)
}

// FlattenPoints copies a cloud into x,y,z float32 triples, the form device
// backends upload.
func FlattenPoints(c Cloud) []float32 {
	out := make([]float32, 0, 3*c.Size())
	for i := 0; i < c.Size(); i++ {
		p := c.Point(i)
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z))
	}
	return out
}

// LineCloud generates count points marching away from the sensor along
// direction, starting one spacing out. Degenerate directions fall back to
// +X.
func LineCloud(origin geometry.Pose, direction r3.Vec, count int, spacing float64) *PointsCloud {
	norm := r3.Norm(direction)
	if norm == 0 {
		direction, norm = r3.Vec{X: 1}, 1
	}
	unit := r3.Scale(1/norm, direction)
	points := make([]r3.Vec, 0, count)
	for i := 1; i <= count; i++ {
		points = append(points, r3.Scale(spacing*float64(i), unit))
	}
	return NewCloud(origin, points)
}

// BoxScanCloud generates an n-by-n sample grid on each face of the
// axis-aligned box [min, max], 6*n*n points total.
func BoxScanCloud(origin geometry.Pose, min, max r3.Vec, n int) *PointsCloud {
	points := make([]r3.Vec, 0, 6*n*n)
	face := func(axis int, at r3.Vec) {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				u := (float64(i) + 0.5) / float64(n)
				v := (float64(j) + 0.5) / float64(n)
				var p r3.Vec
				switch axis {
				case 0:
					p = r3.Vec{X: at.X, Y: min.Y + u*(max.Y-min.Y), Z: min.Z + v*(max.Z-min.Z)}
				case 1:
					p = r3.Vec{X: min.X + u*(max.X-min.X), Y: at.Y, Z: min.Z + v*(max.Z-min.Z)}
				default:
					p = r3.Vec{X: min.X + u*(max.X-min.X), Y: min.Y + v*(max.Y-min.Y), Z: at.Z}
				}
				points = append(points, p)
			}
		}
	}
	for axis := 0; axis < 3; axis++ {
		face(axis, min)
		face(axis, max)
	}
	return NewCloud(origin, points)
}

// SphereScanCloud generates phiSteps*thetaSteps points on the sphere of the
// given radius around center.
func SphereScanCloud(origin geometry.Pose, center r3.Vec, radius float64, phiSteps, thetaSteps int) *PointsCloud {
	points := make([]r3.Vec, 0, phiSteps*thetaSteps)
	for ti := 0; ti < thetaSteps; ti++ {
		theta := math.Pi * (float64(ti) + 0.5) / float64(thetaSteps)
		for pi := 0; pi < phiSteps; pi++ {
			phi := 2 * math.Pi * float64(pi) / float64(phiSteps)
			points = append(points, r3.Add(center, r3.Vec{
				X: radius * math.Sin(theta) * math.Cos(phi),
				Y: radius * math.Sin(theta) * math.Sin(phi),
				Z: radius * math.Cos(theta),
			}))
		}
	}
	return NewCloud(origin, points)
}
