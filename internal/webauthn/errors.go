package webauthn

import (
	"fmt"

	"github.com/and161185/jdue/internal/model"
)

// Reason names why a ceremony was rejected. The value is stable and is sent to clients.
type Reason string

const (
	ReasonBadType             Reason = "bad_type"
	ReasonBadOrigin           Reason = "bad_origin"
	ReasonBadChallenge        Reason = "bad_challenge"
	ReasonBadRPIDHash         Reason = "bad_rp_id_hash"
	ReasonUserNotPresent      Reason = "user_not_present"
	ReasonBadSignature        Reason = "bad_signature"
	ReasonBadAttestation      Reason = "bad_attestation"
	ReasonCredentialNotFound  Reason = "credential_not_found"
	ReasonDuplicateCredential Reason = "duplicate_credential"
	ReasonUnparseableKey      Reason = "unparseable_key"
	ReasonMalformedData       Reason = "malformed_data"
	ReasonSignCount           Reason = "sign_count"
)

// RejectedError is returned when any ceremony step fails.
type RejectedError struct {
	Reason Reason
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return "webauthn: ceremony rejected: " + string(e.Reason)
	}
	return "webauthn: ceremony rejected: " + string(e.Reason) + ": " + e.Detail
}

// Is matches any RejectedError with the same reason, so the sentinels below
// work with errors.Is regardless of detail.
func (e *RejectedError) Is(target error) bool {
	t, ok := target.(*RejectedError)
	return ok && t.Reason == e.Reason
}

var (
	ErrBadType             = &RejectedError{Reason: ReasonBadType}
	ErrBadOrigin           = &RejectedError{Reason: ReasonBadOrigin}
	ErrBadChallenge        = &RejectedError{Reason: ReasonBadChallenge}
	ErrBadRPIDHash         = &RejectedError{Reason: ReasonBadRPIDHash}
	ErrUserNotPresent      = &RejectedError{Reason: ReasonUserNotPresent}
	ErrBadSignature        = &RejectedError{Reason: ReasonBadSignature}
	ErrBadAttestation      = &RejectedError{Reason: ReasonBadAttestation}
	ErrCredentialNotFound  = &RejectedError{Reason: ReasonCredentialNotFound}
	ErrDuplicateCredential = &RejectedError{Reason: ReasonDuplicateCredential}
	ErrUnparseableKey      = &RejectedError{Reason: ReasonUnparseableKey}
	ErrMalformedData       = &RejectedError{Reason: ReasonMalformedData}
	ErrSignCount           = &RejectedError{Reason: ReasonSignCount}
)

func reject(r Reason, format string, args ...any) error {
	return &RejectedError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// AccountInactiveError is returned when the credential owner is banned or deactivated.
type AccountInactiveError struct {
	Status model.UserStatus
}

func (e *AccountInactiveError) Error() string {
	return "account has been " + string(e.Status)
}
