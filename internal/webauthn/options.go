package webauthn

import "github.com/gofrs/uuid/v5"

// RelyingParty identifies this service to the authenticator.
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserEntity describes the account a credential is created for.
type UserEntity struct {
	ID          string `json:"id"` // base64url user handle
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CredentialParameter is one acceptable key type.
type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int64  `json:"alg"`
}

// CredentialDescriptor references an existing credential.
type CredentialDescriptor struct {
	Type string `json:"type"`
	ID   string `json:"id"` // base64url
}

// AuthenticatorSelection narrows which authenticators may be used.
type AuthenticatorSelection struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

// CreationOptions are passed to navigator.credentials.create.
type CreationOptions struct {
	CeremonyID             uuid.UUID              `json:"ceremonyId"`
	Challenge              string                 `json:"challenge"`
	RP                     RelyingParty           `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []CredentialParameter  `json:"pubKeyCredParams"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	Attestation            string                 `json:"attestation"`
	Timeout                int64                  `json:"timeout"` // milliseconds
}

// RequestOptions are passed to navigator.credentials.get.
type RequestOptions struct {
	CeremonyID       uuid.UUID              `json:"ceremonyId"`
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	UserVerification string                 `json:"userVerification"`
	Timeout          int64                  `json:"timeout"`
}

// RegistrationInput is the client's attestation response.
type RegistrationInput struct {
	CeremonyID        uuid.UUID
	UserID            uuid.UUID
	Name              string
	RawID             []byte
	ClientDataJSON    []byte
	AttestationObject []byte
}

// AuthenticationInput is the client's assertion response.
type AuthenticationInput struct {
	CeremonyID        uuid.UUID
	CredentialID      []byte
	ClientDataJSON    []byte
	AuthenticatorData []byte
	Signature         []byte
	UserHandle        []byte
}
