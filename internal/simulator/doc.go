// Package simulator provides simulated observatory hardware: a camera
// array, a mount driver, a dome and a field scheduler, assembled into an
// Observatory the state machine can drive.
//
// Cameras report completion through remote events on the configured
// transport exactly as real driver processes do, so a simulated night
// exercises the same AND barrier and MQTT topics as a real one.
// Every hardware duration is multiplied by a time scale; 0.001 runs a
// night in well under a minute.
package simulator
