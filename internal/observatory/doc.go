// Package observatory holds the domain types shared between the state
// machine and the hardware layer: observations and fields, the error
// taxonomy hardware collaborators report, and the Huntsman mount
// composition.
package observatory
