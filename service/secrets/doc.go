// Package secrets implements the at-rest secret envelope used to persist
// small secrets (keys, tokens, sessions) inside human editable
// configuration files. A value is encoded by a pluggable Codec and wrapped
// into a single string, AES-256-GCM encrypted when the configured
// KeyProvider yields a key. The package also provides the identity and
// session store layered on top of the envelope.
package secrets
