package rhex

import (
	"errors"
	"fmt"
)

// Sentinel errors for the R⬢ core. Handlers in package usher/dispatch
// translate these into error:verify_failed / error:policy_denied response
// records; none of them should ever cause a panic.
var (
	ErrBadMagic             = errors.New("rhex: bad magic")
	ErrMissingAuthor        = errors.New("rhex: missing author signature")
	ErrMissingUsher         = errors.New("rhex: missing usher signature")
	ErrAlreadySigned        = errors.New("rhex: author already signed")
	ErrAlreadyUshered       = errors.New("rhex: already ushered")
	ErrDuplicateQuorumSigner = errors.New("rhex: duplicate quorum signer")
	ErrHashMismatch         = errors.New("rhex: current_hash mismatch")
	ErrEncodingError        = errors.New("rhex: encoding error")
	ErrNotFinalized         = errors.New("rhex: record is not finalized")
)

// Role identifies which signature slot a BadSignatureError refers to.
type Role string

const (
	RoleAuthor Role = "author"
	RoleUsher  Role = "usher"
	RoleQuorum Role = "quorum"
)

// BadSignatureError reports that a signature for the given role failed to
// verify against its pre-hash.
type BadSignatureError struct {
	Role Role
}

func (e *BadSignatureError) Error() string {
	return fmt.Sprintf("rhex: bad %s signature", e.Role)
}

// IsBadSignature reports whether err is a *BadSignatureError, optionally for
// a specific role (pass "" to match any role).
func IsBadSignature(err error, role Role) bool {
	var bse *BadSignatureError
	if !errors.As(err, &bse) {
		return false
	}
	return role == "" || bse.Role == role
}
