package crs

import "math"

// albers implements the ellipsoidal Albers equal-area conic projection
// (Snyder, Map Projections: A Working Manual, formulas 14-1 through 14-21).
type albers struct {
	a  float64 // semi-major axis
	e  float64 // eccentricity
	e2 float64 // eccentricity squared

	lon0 float64 // central meridian, radians
	n    float64
	c    float64
	rho0 float64
	x0   float64 // false easting
	y0   float64 // false northing
}

// newCaliforniaAlbers builds EPSG:3310 (NAD83 / California Albers) on the
// GRS80 ellipsoid with standard parallels 34 and 40.5 degrees.
func newCaliforniaAlbers() *albers {
	const (
		a    = 6378137.0
		invF = 298.257222101
	)
	f := 1 / invF
	e2 := 2*f - f*f
	return newAlbers(a, e2,
		deg2rad(34), deg2rad(40.5), // standard parallels
		deg2rad(0), deg2rad(-120), // latitude/longitude of origin
		0, -4000000) // false easting/northing
}

func newAlbers(a, e2, lat1, lat2, lat0, lon0, x0, y0 float64) *albers {
	p := &albers{a: a, e: math.Sqrt(e2), e2: e2, lon0: lon0, x0: x0, y0: y0}
	m1 := p.m(lat1)
	m2 := p.m(lat2)
	q0 := p.q(lat0)
	q1 := p.q(lat1)
	q2 := p.q(lat2)
	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.rho(q0)
	return p
}

func (p *albers) m(lat float64) float64 {
	s := math.Sin(lat)
	return math.Cos(lat) / math.Sqrt(1-p.e2*s*s)
}

func (p *albers) q(lat float64) float64 {
	s := math.Sin(lat)
	return (1 - p.e2) * (s/(1-p.e2*s*s) - 1/(2*p.e)*math.Log((1-p.e*s)/(1+p.e*s)))
}

func (p *albers) rho(q float64) float64 {
	return p.a * math.Sqrt(p.c-p.n*q) / p.n
}

func (p *albers) forward(lon, lat float64) (float64, float64) {
	phi := deg2rad(lat)
	lam := deg2rad(lon)
	theta := p.n * (lam - p.lon0)
	r := p.rho(p.q(phi))
	x := p.x0 + r*math.Sin(theta)
	y := p.y0 + p.rho0 - r*math.Cos(theta)
	return x, y
}

func (p *albers) inverse(x, y float64) (float64, float64) {
	dx := x - p.x0
	dy := p.rho0 - (y - p.y0)
	r := math.Hypot(dx, dy)
	theta := math.Atan2(dx, dy)
	q := (p.c - r*r*p.n*p.n/(p.a*p.a)) / p.n
	lam := p.lon0 + theta/p.n

	// Iterate for the latitude (Snyder 3-16).
	phi := math.Asin(q / 2)
	for i := 0; i < 15; i++ {
		s := math.Sin(phi)
		d := (1 - p.e2*s*s) * (1 - p.e2*s*s) / (2 * math.Cos(phi)) *
			(q/(1-p.e2) - s/(1-p.e2*s*s) + 1/(2*p.e)*math.Log((1-p.e*s)/(1+p.e*s)))
		phi += d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	return rad2deg(lam), rad2deg(phi)
}

// sphericalMercator implements EPSG:3857.
type sphericalMercator struct{}

const mercRadius = 6378137.0

func (sphericalMercator) forward(lon, lat float64) (float64, float64) {
	x := mercRadius * deg2rad(lon)
	y := mercRadius * math.Log(math.Tan(math.Pi/4+deg2rad(lat)/2))
	return x, y
}

func (sphericalMercator) inverse(x, y float64) (float64, float64) {
	lon := rad2deg(x / mercRadius)
	lat := rad2deg(2*math.Atan(math.Exp(y/mercRadius)) - math.Pi/2)
	return lon, lat
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
