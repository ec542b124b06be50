// Package safety decides whether the observatory may operate.
//
// Darkness is judged per named horizon: each horizon is a sun altitude in
// degrees (e.g. startup -6, flat -3, focus -12, observe -18) and the sky is
// dark for that horizon when the sun is below it. The sun altitude is the
// NOAA low-precision solar position for the site coordinates, good to
// roughly a hundredth of a degree.
//
// Weather arrives as JSON on an MQTT topic (default huntsman/weather):
//
//	{"safe": true, "reason": "", "timestamp": "2026-10-17T11:00:00Z"}
//
// A reading older than the configured maximum age is unsafe, so a dead
// weather station closes the observatory.
//
// Either input can be replaced by a simulation: "night" makes every
// horizon dark and "weather" makes the weather permanently safe.
package safety
