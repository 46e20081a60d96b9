// Package event polls a GraphQL endpoint for on-chain events wrapped in
// the primitives EventWrapper type, parses them into typed payloads and
// delivers them in cursor order onto a buffered channel. Transport and
// decode failures are surfaced on the channel and retried with
// exponential backoff; individual events that fail to parse are skipped.
package event
