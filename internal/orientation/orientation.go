// Package orientation implements Madgwick IMU quaternion fusion for the
// controller's gyro/accelerometer pair, matching the wire convention
// the console expects for orient_w/x/y/z in feedback state packets.
package orientation

import "math"

const (
	sin14Pi = 0.70710678118654752440
	cos14Pi = 0.70710678118654752440

	warmupSamples = 30
	betaWarmup    = 20.0
	betaDefault   = 0.05
)

// Quaternion is a unit quaternion (x, y, z, w).
type Quaternion struct {
	X, Y, Z, W float64
}

// identityInit returns the quaternion representing a 90° rotation
// about X, the Madgwick filter's resting pose for accel (0,1,0).
func identityInit() Quaternion {
	return Quaternion{X: sin14Pi, Y: 0, Z: 0, W: cos14Pi}
}

// update advances q by one Madgwick IMU fusion step given gyro (rad/s),
// accelerometer (any consistent unit, normalized internally), the
// filter gain beta, and the elapsed time step in seconds.
func update(q Quaternion, gx, gy, gz, ax, ay, az, beta, dt float64) Quaternion {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z

	qDot1 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot2 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot3 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot4 := 0.5 * (q0*gz + q1*gy - q2*gx)

	if !(ax == 0 && ay == 0 && az == 0) {
		recipNorm := invSqrt(ax*ax + ay*ay + az*az)
		ax *= recipNorm
		ay *= recipNorm
		az *= recipNorm

		_2q0 := 2 * q0
		_2q1 := 2 * q1
		_2q2 := 2 * q2
		_2q3 := 2 * q3
		_4q0 := 4 * q0
		_4q1 := 4 * q1
		_4q2 := 4 * q2
		_8q1 := 8 * q1
		_8q2 := 8 * q2
		q0q0 := q0 * q0
		q1q1 := q1 * q1
		q2q2 := q2 * q2
		q3q3 := q3 * q3

		s0 := _4q0*q2q2 + _2q2*ax + _4q0*q1q1 - _2q1*ay
		s1 := _4q1*q3q3 - _2q3*ax + 4*q0q0*q1 - _2q0*ay - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*az
		s2 := 4*q0q0*q2 + _2q0*ax + _4q2*q3q3 - _2q3*ay - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*az
		s3 := 4*q1q1*q3 - _2q1*ax + 4*q2q2*q3 - _2q2*ay

		normSq := s0*s0 + s1*s1 + s2*s2 + s3*s3
		if normSq > 0.000001 {
			recipNorm = invSqrt(normSq)
			s0 *= recipNorm
			s1 *= recipNorm
			s2 *= recipNorm
			s3 *= recipNorm

			qDot1 -= beta * s0
			qDot2 -= beta * s1
			qDot3 -= beta * s2
			qDot4 -= beta * s3
		}
	}

	q0 += qDot1 * dt
	q1 += qDot2 * dt
	q2 += qDot3 * dt
	q3 += qDot4 * dt

	recipNorm := invSqrt(q0*q0 + q1*q1 + q2*q2 + q3*q3)
	return Quaternion{X: q1 * recipNorm, Y: q2 * recipNorm, Z: q3 * recipNorm, W: q0 * recipNorm}
}

func invSqrt(x float64) float64 {
	return 1.0 / math.Sqrt(x)
}

// Tracker accumulates gyro/accel samples into a fused orientation
// quaternion, handling the 32-bit microsecond timestamp wraparound and
// the warmup/steady-state beta gain schedule.
type Tracker struct {
	GyroX, GyroY, GyroZ    float64
	AccelX, AccelY, AccelZ float64
	Orient                 Quaternion

	timestamp   uint32
	sampleIndex uint64
}

// NewTracker returns a Tracker at rest, accelerometer pointing along Y.
func NewTracker() *Tracker {
	return &Tracker{
		AccelY: 1.0,
		Orient: identityInit(),
	}
}

// Update feeds one gyro/accel/timestamp sample into the filter. The
// first sample only seeds the timestamp; fusion begins on the second.
func (t *Tracker) Update(gx, gy, gz, ax, ay, az float64, timestampUs uint32) {
	t.GyroX, t.GyroY, t.GyroZ = gx, gy, gz
	t.AccelX, t.AccelY, t.AccelZ = ax, ay, az
	t.sampleIndex++
	if t.sampleIndex <= 1 {
		t.timestamp = timestampUs
		return
	}

	deltaUs := uint64(timestampUs)
	if deltaUs < uint64(t.timestamp) {
		deltaUs += 1 << 32
	}
	deltaUs -= uint64(t.timestamp)
	t.timestamp = timestampUs

	beta := betaDefault
	if t.sampleIndex < warmupSamples {
		beta = betaWarmup
	}
	t.Orient = update(t.Orient, gx, gy, gz, ax, ay, az, beta, float64(deltaUs)/1000000.0)
}

// ControllerOrientation is the −90°-about-X rotated quaternion the wire
// format expects, along with the raw IMU samples it was derived from.
type ControllerOrientation struct {
	GyroX, GyroY, GyroZ    float64
	AccelX, AccelY, AccelZ float64
	OrientW, OrientX, OrientY, OrientZ float64
}

// ApplyToControllerState exports the tracker's current fused state,
// rotating the quaternion by −90° about X to match the wire convention.
func (t *Tracker) ApplyToControllerState() ControllerOrientation {
	const (
		cosNeg14Pi = cos14Pi
		sinNeg14Pi = -sin14Pi
	)
	o := t.Orient
	return ControllerOrientation{
		GyroX: t.GyroX, GyroY: t.GyroY, GyroZ: t.GyroZ,
		AccelX: t.AccelX, AccelY: t.AccelY, AccelZ: t.AccelZ,
		OrientW: cosNeg14Pi*o.W - sinNeg14Pi*o.X,
		OrientX: cosNeg14Pi*o.X + sinNeg14Pi*o.W,
		OrientY: cosNeg14Pi*o.Y - sinNeg14Pi*o.Z,
		OrientZ: cosNeg14Pi*o.Z + sinNeg14Pi*o.Y,
	}
}
