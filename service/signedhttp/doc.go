// Package signedhttp implements the v1 signed HTTP protocol between an
// invoker (leader) and a responder (tool). Requests and responses carry
// three X-Nexus-Sig-* headers holding the protocol version, the signed
// claims bytes and an Ed25519 signature over a domain separated message.
// The responder tracks nonces in a replay store to tell idempotent
// retries from replays.
package signedhttp
