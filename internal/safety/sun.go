package safety

import (
	"math"
	"time"
)

const (
	unixEpochJD = 2440587.5
	j2000JD     = 2451545.0
	secondsDay  = 86400.0
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// SunAltitude returns the sun's geometric altitude in degrees at t for an
// observer at lat, lon (degrees, east positive).
func SunAltitude(t time.Time, lat, lon float64) float64 {
	jd := float64(t.UnixNano())/1e9/secondsDay + unixEpochJD
	d := jd - j2000JD

	g := rad(math.Mod(357.529+0.98560028*d, 360))
	q := math.Mod(280.459+0.98564736*d, 360)
	l := rad(q + 1.915*math.Sin(g) + 0.020*math.Sin(2*g))
	e := rad(23.439 - 0.00000036*d)

	ra := math.Atan2(math.Cos(e)*math.Sin(l), math.Cos(l))
	dec := math.Asin(math.Sin(e) * math.Sin(l))

	gmst := math.Mod(18.697374558+24.06570982441908*d, 24)
	lst := gmst*15 + lon
	ha := rad(lst) - ra

	phi := rad(lat)
	return deg(math.Asin(math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(ha)))
}
