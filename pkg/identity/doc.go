// Package identity authenticates people and tracks their sessions.
//
// Provider is the credential store the onboarding flows depend on.
// LocalProvider implements it with bcrypt hashes kept in the document store.
// Sessions issues HS256 JWTs whose subject is the provider's subject id and
// remembers signed-out token ids until they expire. OIDCVerifier lets users
// who already have an account sign in through an external OpenID Connect issuer.
package identity
