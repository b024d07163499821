// Package crypto provides the credential vault for data at rest.
//
// Implements AES-256-GCM sealing of refresh credentials stored in
// PostgreSQL. Two implementations: AesGcmVault (production) and NoopVault
// (dev/test plaintext passthrough).
package crypto
