package presigned

import "errors"

var (
	// ErrNoSecretKey indicates the signer was built without a secret.
	ErrNoSecretKey = errors.New("presigned: no secret key configured")

	// ErrMissingSignature indicates the request carries no signature.
	ErrMissingSignature = errors.New("presigned: missing signature")

	// ErrMissingExpiration indicates the request carries no expiry.
	ErrMissingExpiration = errors.New("presigned: missing expiration")

	// ErrInvalidExpiration indicates the expiry is not a unix timestamp.
	ErrInvalidExpiration = errors.New("presigned: invalid expiration")

	// ErrExpired indicates the URL's expiry has passed.
	ErrExpired = errors.New("presigned: url expired")

	// ErrInvalidSignature indicates the signature does not match.
	ErrInvalidSignature = errors.New("presigned: invalid signature")
)
