package webauthn

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flags.
const (
	flagUserPresent  byte = 0x01
	flagUserVerified byte = 0x04
	flagAttested     byte = 0x40
	flagExtensions   byte = 0x80
)

const (
	rpIDHashLen     = 32
	authDataMinLen  = rpIDHashLen + 1 + 4
	aaguidLen       = 16
	maxCredentialID = 1023
)

// AuthenticatorData is the parsed binary structure produced by the authenticator.
type AuthenticatorData struct {
	RPIDHash   []byte
	Flags      byte
	SignCount  uint32
	Attested   *AttestedCredential
	Extensions cbor.RawMessage
}

// AttestedCredential is present only during registration.
type AttestedCredential struct {
	AAGUID       []byte
	CredentialID []byte
	PublicKey    cbor.RawMessage // COSE_Key
}

func (a AuthenticatorData) UserPresent() bool  { return a.Flags&flagUserPresent != 0 }
func (a AuthenticatorData) UserVerified() bool { return a.Flags&flagUserVerified != 0 }

func parseAuthenticatorData(b []byte) (AuthenticatorData, error) {
	var ad AuthenticatorData
	if len(b) < authDataMinLen {
		return ad, reject(ReasonMalformedData, "authenticator data is %d bytes", len(b))
	}
	ad.RPIDHash = b[:rpIDHashLen]
	ad.Flags = b[rpIDHashLen]
	ad.SignCount = binary.BigEndian.Uint32(b[rpIDHashLen+1 : authDataMinLen])
	rest := b[authDataMinLen:]

	if ad.Flags&flagAttested != 0 {
		if len(rest) < aaguidLen+2 {
			return ad, reject(ReasonMalformedData, "attested credential data truncated")
		}
		cred := &AttestedCredential{AAGUID: rest[:aaguidLen]}
		idLen := int(binary.BigEndian.Uint16(rest[aaguidLen : aaguidLen+2]))
		rest = rest[aaguidLen+2:]
		if idLen == 0 || idLen > maxCredentialID {
			return ad, reject(ReasonMalformedData, "credential id length %d", idLen)
		}
		if len(rest) < idLen {
			return ad, reject(ReasonMalformedData, "credential id truncated")
		}
		cred.CredentialID = rest[:idLen]
		rest = rest[idLen:]

		var key cbor.RawMessage
		tail, err := cbor.UnmarshalFirst(rest, &key)
		if err != nil {
			return ad, reject(ReasonMalformedData, "credential public key: %v", err)
		}
		cred.PublicKey = key
		ad.Attested = cred
		rest = tail
	}

	if ad.Flags&flagExtensions != 0 {
		var ext cbor.RawMessage
		tail, err := cbor.UnmarshalFirst(rest, &ext)
		if err != nil {
			return ad, reject(ReasonMalformedData, "extensions: %v", err)
		}
		ad.Extensions = ext
		rest = tail
	}

	if len(rest) != 0 {
		return ad, reject(ReasonMalformedData, "%d trailing bytes in authenticator data", len(rest))
	}
	return ad, nil
}
