// Package meshscan simulates a range sensor against triangle meshes, giving
// the voxelizer a data source that needs no hardware. Meshes load from OFF
// files, the format the ModelNet corpus ships.
package meshscan

import (
	"fmt"
	"math"
	"os"

	"github.com/unixpickle/model3d"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
)

// Scanner casts rays against a mesh collider and collects first-hit points.
// A maxRange of zero means unlimited.
type Scanner struct {
	collider model3d.Collider
	maxRange float64
}

// LoadOFF builds a scanner from an OFF mesh file.
func LoadOFF(path string, maxRange float64) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()
	triangles, err := model3d.ReadOFF(f)
	if err != nil {
		return nil, fmt.Errorf("read OFF mesh %s: %w", path, err)
	}
	mesh := model3d.NewMeshTriangles(triangles)
	return NewScanner(model3d.MeshToCollider(mesh), maxRange), nil
}

// NewScanner wraps an existing collider.
func NewScanner(collider model3d.Collider, maxRange float64) *Scanner {
	return &Scanner{collider: collider, maxRange: maxRange}
}

// Bounds returns the collider's axis-aligned bounds.
func (s *Scanner) Bounds() (min, max r3.Vec) {
	lo, hi := s.collider.Min(), s.collider.Max()
	return r3.Vec{X: lo.X, Y: lo.Y, Z: lo.Z}, r3.Vec{X: hi.X, Y: hi.Y, Z: hi.Z}
}

// ScanFrom casts thetaSteps*phiSteps rays over the full sphere from eye
// (world frame). Hits come back as a cloud of sensor-frame points whose
// origin pose places the sensor at eye; rays that miss, or hit beyond
// maxRange, contribute nothing.
func (s *Scanner) ScanFrom(eye r3.Vec, phiSteps, thetaSteps int) *pointcloud.PointsCloud {
	cloud := pointcloud.NewCloud(geometry.Translation(eye.X, eye.Y, eye.Z), nil)
	for ti := 0; ti < thetaSteps; ti++ {
		theta := math.Pi * (float64(ti) + 0.5) / float64(thetaSteps)
		for pi := 0; pi < phiSteps; pi++ {
			phi := 2 * math.Pi * float64(pi) / float64(phiSteps)
			dir := model3d.Coord3D{
				X: math.Sin(theta) * math.Cos(phi),
				Y: math.Sin(theta) * math.Sin(phi),
				Z: math.Cos(theta),
			}
			ray := &model3d.Ray{
				Origin:    model3d.Coord3D{X: eye.X, Y: eye.Y, Z: eye.Z},
				Direction: dir,
			}
			coll, ok := s.collider.FirstRayCollision(ray)
			if !ok {
				continue
			}
			// Direction is unit length, so the collision scale is the range.
			if s.maxRange > 0 && coll.Scale > s.maxRange {
				continue
			}
			cloud.AppendPoint(r3.Vec{
				X: dir.X * coll.Scale,
				Y: dir.Y * coll.Scale,
				Z: dir.Z * coll.Scale,
			})
		}
	}
	return cloud
}
