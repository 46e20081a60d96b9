// Package types defines the NexusData envelope used for workflow input
// ports, output ports and default values, together with its on-chain wire
// representation.
package types
