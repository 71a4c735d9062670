package math

import (
	m "math"
)

const (
	// KFloatEpsilon is the smallest positive number where 1.0 + epsilon != 1.0.
	KFloatEpsilon float32 = 1.192092896e-07
)

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

// Vec2Add returns the component-wise sum of two Vec2 values.
func Vec2Add(a, b Vec2) Vec2 {
	return Vec2{X: a.X + b.X, Y: a.Y + b.Y}
}

// Vec2Sub returns the component-wise difference of two Vec2 values.
func Vec2Sub(a, b Vec2) Vec2 {
	return Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

// Vec2Mul returns the component-wise product of two Vec2 values.
func Vec2Mul(a, b Vec2) Vec2 {
	return Vec2{X: a.X * b.X, Y: a.Y * b.Y}
}

// Vec2Compare reports whether a and b are equal within tolerance.
func Vec2Compare(a, b Vec2, tolerance float32) bool {
	if kabs(a.X-b.X) > tolerance {
		return false
	}
	if kabs(a.Y-b.Y) > tolerance {
		return false
	}
	return true
}

// Vec3Add returns the component-wise sum of two Vec3 values.
func Vec3Add(a, b Vec3) Vec3 {
	return Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

// Vec3Sub returns the component-wise difference of two Vec3 values.
func Vec3Sub(a, b Vec3) Vec3 {
	return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

// Vec3Mul returns the component-wise product of two Vec3 values.
func Vec3Mul(a, b Vec3) Vec3 {
	return Vec3{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// Vec3MulScalar scales v by s.
func Vec3MulScalar(v Vec3, s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Vec3Length returns the Euclidean length of v.
func Vec3Length(v Vec3) float32 {
	return ksqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Vec3Compare reports whether a and b are equal within tolerance.
func Vec3Compare(a, b Vec3, tolerance float32) bool {
	if kabs(a.X-b.X) > tolerance {
		return false
	}
	if kabs(a.Y-b.Y) > tolerance {
		return false
	}
	if kabs(a.Z-b.Z) > tolerance {
		return false
	}
	return true
}

// Vec4Add returns the component-wise sum of two Vec4 values.
func Vec4Add(a, b Vec4) Vec4 {
	return Vec4{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z, W: a.W + b.W}
}

// Vec4Sub returns the component-wise difference of two Vec4 values.
func Vec4Sub(a, b Vec4) Vec4 {
	return Vec4{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z, W: a.W - b.W}
}

// Vec4Compare reports whether a and b are equal within tolerance.
func Vec4Compare(a, b Vec4, tolerance float32) bool {
	if kabs(a.X-b.X) > tolerance {
		return false
	}
	if kabs(a.Y-b.Y) > tolerance {
		return false
	}
	if kabs(a.Z-b.Z) > tolerance {
		return false
	}
	if kabs(a.W-b.W) > tolerance {
		return false
	}
	return true
}
