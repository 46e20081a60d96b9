// Package host serves tools over HTTP. Every mounted tool gets a health,
// a meta and an invoke endpoint under its base path; invoke requests can
// optionally be authenticated with the signed HTTP v1 protocol, in which
// case responses, including post-authentication errors, are signed.
package host
