// Package nexus is an off-chain toolkit for the Nexus workflow network:
// DAG validation, KAT policy compilation, Groth16 gas and policy
// circuits, the signed HTTP v1 protocol between leaders and tools, the
// at-rest secret store, the NexusData codec and the on-chain event
// fetcher. The root package wires these subsystems from a single runtime
// configuration.
package nexus
