package anim

import "math"

// lerp performs linear interpolation between two values.
func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// lerpAngle interpolates along the shortest arc.
func lerpAngle(a, b, t float64) float64 {
	d := math.Remainder(b-a, 2*math.Pi)
	return a + t*d
}

// matrixToEuler extracts roll, pitch, yaw (radians) from a 4x4 transform.
// ZYX convention (yaw-pitch-roll).
func matrixToEuler(m [4][4]float64) (roll, pitch, yaw float64) {
	r00 := m[0][0]
	r10, r11, r12 := m[1][0], m[1][1], m[1][2]
	r20, r21, r22 := m[2][0], m[2][1], m[2][2]

	sy := math.Sqrt(r00*r00 + r10*r10)

	// Gimbal lock at pitch = ±90°
	if sy < 1e-6 {
		return math.Atan2(-r12, r11), math.Atan2(-r20, sy), 0
	}
	return math.Atan2(r21, r22), math.Atan2(-r20, sy), math.Atan2(r10, r00)
}

// interpolate blends two poses, alpha in [0, 1].
func interpolate(a, b Pose, alpha float64) Pose {
	return Pose{
		Roll:     lerpAngle(a.Roll, b.Roll, alpha),
		Pitch:    lerpAngle(a.Pitch, b.Pitch, alpha),
		Yaw:      lerpAngle(a.Yaw, b.Yaw, alpha),
		Antennas: [2]float64{lerp(a.Antennas[0], b.Antennas[0], alpha), lerp(a.Antennas[1], b.Antennas[1], alpha)},
		BodyYaw:  lerpAngle(a.BodyYaw, b.BodyYaw, alpha),
	}
}
