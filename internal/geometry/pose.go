// Package geometry provides the rigid-transform and vector math shared by the
// voxel grid, raycasting and topology packages.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid transform stored as a 4x4 row-major homogeneous matrix
// (m00..m03, m10..m13, m20..m23, m30..m33). The last row is always 0,0,0,1
// for poses built through the constructors in this package.
type Pose struct {
	T [16]float64
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{T: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// Translation returns a pure translation pose.
func Translation(x, y, z float64) Pose {
	p := Identity()
	p.T[3] = x
	p.T[7] = y
	p.T[11] = z
	return p
}

// XYZRPY builds a pose from a translation and roll/pitch/yaw angles (radians).
// Rotation order is Rz(yaw) * Ry(pitch) * Rx(roll), the convention used by the
// pose records this package replaces.
func XYZRPY(x, y, z, roll, pitch, yaw float64) Pose {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	return Pose{T: [16]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, x,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, y,
		-sp, cp * sr, cp * cr, z,
		0, 0, 0, 1,
	}}
}

// Apply transforms a point by the pose.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	t := &p.T
	return r3.Vec{
		X: t[0]*v.X + t[1]*v.Y + t[2]*v.Z + t[3],
		Y: t[4]*v.X + t[5]*v.Y + t[6]*v.Z + t[7],
		Z: t[8]*v.X + t[9]*v.Y + t[10]*v.Z + t[11],
	}
}

// Rotate transforms a direction by the pose's rotation only.
func (p Pose) Rotate(v r3.Vec) r3.Vec {
	t := &p.T
	return r3.Vec{
		X: t[0]*v.X + t[1]*v.Y + t[2]*v.Z,
		Y: t[4]*v.X + t[5]*v.Y + t[6]*v.Z,
		Z: t[8]*v.X + t[9]*v.Y + t[10]*v.Z,
	}
}

// Translation returns the pose's translation component.
func (p Pose) Translation() r3.Vec {
	return r3.Vec{X: p.T[3], Y: p.T[7], Z: p.T[11]}
}

// Compose returns the pose equivalent to applying o first, then p.
func (p Pose) Compose(o Pose) Pose {
	var out Pose
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += p.T[row*4+k] * o.T[k*4+col]
			}
			out.T[row*4+col] = sum
		}
	}
	return out
}

// Inverse returns the inverse pose. Only valid for rigid transforms
// (orthonormal rotation), which all constructor-built poses are.
func (p Pose) Inverse() Pose {
	t := &p.T
	// Transposed rotation block.
	r00, r01, r02 := t[0], t[4], t[8]
	r10, r11, r12 := t[1], t[5], t[9]
	r20, r21, r22 := t[2], t[6], t[10]
	tx, ty, tz := t[3], t[7], t[11]

	return Pose{T: [16]float64{
		r00, r01, r02, -(r00*tx + r01*ty + r02*tz),
		r10, r11, r12, -(r10*tx + r11*ty + r12*tz),
		r20, r21, r22, -(r20*tx + r21*ty + r22*tz),
		0, 0, 0, 1,
	}}
}

// AsFloat32 returns the matrix in the single-precision layout device
// backends upload.
func (p Pose) AsFloat32() [16]float32 {
	var out [16]float32
	for i, v := range p.T {
		out[i] = float32(v)
	}
	return out
}

// ApproxEqual reports whether two poses match within tol per element.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	for i := range p.T {
		if math.Abs(p.T[i]-o.T[i]) > tol {
			return false
		}
	}
	return true
}
