package errors

// IsTransient reports whether a fetch failure is worth retrying: network
// timeouts, connection resets, 5xx responses, and provider rate-limit signals.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeFetchTransient, ErrCodeFetchRateLimited:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether a fetch failure must not be retried: unknown
// symbols, malformed requests, and unexpected response shapes. The cascade
// treats these as "no data from this source" and moves on.
func IsPermanent(err error) bool {
	switch GetCode(err) {
	case ErrCodeFetchPermanent, ErrCodeFetchParse, ErrCodeInvalidSymbol:
		return true
	default:
		return false
	}
}
