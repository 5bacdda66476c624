package staging

import "errors"

// Admission rejections. They are deterministic for a given input and chain
// state, so resubmitting the same payload will fail the same way.
var (
	ErrStaleNonce                 = errors.New("stale nonce")
	ErrNonceGap                   = errors.New("nonce gap")
	ErrSignatureCountNotIncreased = errors.New("signature count not increased")
	ErrInvalidSignatures          = errors.New("invalid signature")
)

// IsRejection reports whether err is one of the admission rejections above.
func IsRejection(err error) bool {
	return errors.Is(err, ErrStaleNonce) ||
		errors.Is(err, ErrNonceGap) ||
		errors.Is(err, ErrSignatureCountNotIncreased) ||
		errors.Is(err, ErrInvalidSignatures)
}
