// Package webauthn verifies WebAuthn registration and authentication
// ceremonies against server-issued challenges and stored credentials.
//
// Every step is a hard gate. Failures are reported as *RejectedError with a
// stable Reason, or *AccountInactiveError when the credential owner may not
// sign in. Storage errors are returned unchanged.
package webauthn

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	pkgcrypto "github.com/and161185/jdue/internal/crypto"
	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const challengeLen = 32

// CredentialStore persists registered credentials.
type CredentialStore interface {
	FindByCredentialID(ctx context.Context, id []byte) ([]model.Credential, error)
	AddCredential(ctx context.Context, userID uuid.UUID, cred model.Credential) error
	ListCredentials(ctx context.Context, userID uuid.UUID) ([]model.Credential, error)
	UpdateSignCount(ctx context.Context, id []byte, count uint32, usedAt time.Time) error
}

// UserDirectory resolves account status.
type UserDirectory interface {
	GetUserStatus(ctx context.Context, userID uuid.UUID) (model.UserStatus, error)
}

// ChallengeStore keeps issued challenges until they are consumed or expire.
type ChallengeStore interface {
	Save(ctx context.Context, c model.Challenge) error
	// Consume returns and removes the challenge; errs.ErrNotFound if absent.
	Consume(ctx context.Context, id uuid.UUID) (model.Challenge, error)
}

// Config holds relying party settings.
type Config struct {
	RPID         string
	RPName       string
	Origin       string
	ChallengeTTL time.Duration
}

// Verifier runs both ceremonies for one relying party.
type Verifier struct {
	cfg        Config
	rpIDHash   [32]byte
	creds      CredentialStore
	users      UserDirectory
	challenges ChallengeStore
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewVerifier constructs a Verifier. m may be nil.
func NewVerifier(cfg Config, creds CredentialStore, users UserDirectory, challenges ChallengeStore, log *zap.Logger, m *metrics.Metrics) *Verifier {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return &Verifier{
		cfg:        cfg,
		rpIDHash:   sha256.Sum256([]byte(cfg.RPID)),
		creds:      creds,
		users:      users,
		challenges: challenges,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

func (v *Verifier) newChallenge(ctx context.Context, kind model.CeremonyKind, userID uuid.UUID) (model.Challenge, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Challenge{}, err
	}
	value, err := pkgcrypto.RandBytes(challengeLen)
	if err != nil {
		return model.Challenge{}, err
	}
	c := model.Challenge{
		ID:        id,
		Ceremony:  kind,
		UserID:    userID,
		Value:     value,
		ExpiresAt: v.now().Add(v.cfg.ChallengeTTL),
	}
	if err := v.challenges.Save(ctx, c); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// BeginRegistration issues a registration challenge for an authenticated user.
func (v *Verifier) BeginRegistration(ctx context.Context, userID uuid.UUID, userName string) (CreationOptions, error) {
	existing, err := v.creds.ListCredentials(ctx, userID)
	if err != nil {
		return CreationOptions{}, err
	}
	c, err := v.newChallenge(ctx, model.CeremonyRegistration, userID)
	if err != nil {
		return CreationOptions{}, err
	}

	params := make([]CredentialParameter, 0, len(SupportedAlgorithms))
	for _, alg := range SupportedAlgorithms {
		params = append(params, CredentialParameter{Type: "public-key", Alg: alg})
	}
	exclude := make([]CredentialDescriptor, 0, len(existing))
	for _, cr := range existing {
		exclude = append(exclude, CredentialDescriptor{Type: "public-key", ID: EncodeBase64URL(cr.ID)})
	}
	return CreationOptions{
		CeremonyID:         c.ID,
		Challenge:          EncodeBase64URL(c.Value),
		RP:                 RelyingParty{ID: v.cfg.RPID, Name: v.cfg.RPName},
		User:               UserEntity{ID: EncodeBase64URL(userID.Bytes()), Name: userName, DisplayName: userName},
		PubKeyCredParams:   params,
		ExcludeCredentials: exclude,
		AuthenticatorSelection: AuthenticatorSelection{
			ResidentKey:      "preferred",
			UserVerification: "preferred",
		},
		Attestation: "none",
		Timeout:     v.cfg.ChallengeTTL.Milliseconds(),
	}, nil
}

// BeginAuthentication issues a login challenge. The user is not known yet.
func (v *Verifier) BeginAuthentication(ctx context.Context) (RequestOptions, error) {
	c, err := v.newChallenge(ctx, model.CeremonyAuthentication, uuid.Nil)
	if err != nil {
		return RequestOptions{}, err
	}
	return RequestOptions{
		CeremonyID:       c.ID,
		Challenge:        EncodeBase64URL(c.Value),
		RPID:             v.cfg.RPID,
		AllowCredentials: []CredentialDescriptor{},
		UserVerification: "preferred",
		Timeout:          v.cfg.ChallengeTTL.Milliseconds(),
	}, nil
}

// takeChallenge burns the ceremony's challenge. It runs before any other
// check so that a rejected attempt cannot be retried on the same ceremony.
func (v *Verifier) takeChallenge(ctx context.Context, id uuid.UUID) (model.Challenge, error) {
	c, err := v.challenges.Consume(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Challenge{}, reject(ReasonBadChallenge, "unknown or already used ceremony")
	}
	if err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// checkChallenge matches a consumed challenge against what the client signed.
func (v *Verifier) checkChallenge(c model.Challenge, kind model.CeremonyKind, userID uuid.UUID, clientChallenge string) error {
	if !v.now().Before(c.ExpiresAt) {
		return reject(ReasonBadChallenge, "challenge expired")
	}
	if c.Ceremony != kind {
		return reject(ReasonBadChallenge, "challenge issued for %s", c.Ceremony)
	}
	if kind == model.CeremonyRegistration && c.UserID != userID {
		return reject(ReasonBadChallenge, "challenge issued for another user")
	}
	got, err := DecodeBase64URL(clientChallenge)
	if err != nil || subtle.ConstantTimeCompare(got, c.Value) != 1 {
		return reject(ReasonBadChallenge, "challenge mismatch")
	}
	return nil
}

func (v *Verifier) checkRPIDHash(h []byte) error {
	if subtle.ConstantTimeCompare(h, v.rpIDHash[:]) != 1 {
		return ErrBadRPIDHash
	}
	return nil
}

// VerifyRegistration validates an attestation response and stores the new credential.
func (v *Verifier) VerifyRegistration(ctx context.Context, in RegistrationInput) (cred model.Credential, err error) {
	defer func() { v.record(model.CeremonyRegistration, err) }()

	ch, err := v.takeChallenge(ctx, in.CeremonyID)
	if err != nil {
		return model.Credential{}, err
	}
	cd, err := parseClientData(in.ClientDataJSON)
	if err != nil {
		return model.Credential{}, err
	}
	if cd.Type != typeCreate {
		return model.Credential{}, reject(ReasonBadType, "got %q", cd.Type)
	}
	if cd.Origin != v.cfg.Origin {
		return model.Credential{}, reject(ReasonBadOrigin, "got %q", cd.Origin)
	}
	if err := v.checkChallenge(ch, model.CeremonyRegistration, in.UserID, cd.Challenge); err != nil {
		return model.Credential{}, err
	}

	obj, err := parseAttestationObject(in.AttestationObject)
	if err != nil {
		return model.Credential{}, err
	}
	ad, err := parseAuthenticatorData(obj.AuthData)
	if err != nil {
		return model.Credential{}, err
	}
	if err := v.checkRPIDHash(ad.RPIDHash); err != nil {
		return model.Credential{}, err
	}
	if !ad.UserPresent() {
		return model.Credential{}, ErrUserNotPresent
	}
	if ad.Attested == nil {
		return model.Credential{}, reject(ReasonMalformedData, "no attested credential data")
	}
	credID := ad.Attested.CredentialID
	if len(in.RawID) > 0 && !bytes.Equal(in.RawID, credID) {
		return model.Credential{}, reject(ReasonMalformedData, "raw id differs from attested credential id")
	}

	existing, err := v.creds.FindByCredentialID(ctx, credID)
	if err != nil {
		return model.Credential{}, err
	}
	if len(existing) > 0 {
		return model.Credential{}, ErrDuplicateCredential
	}

	key, err := parseCredentialKey(ad.Attested.PublicKey)
	if err != nil {
		return model.Credential{}, err
	}
	spki, err := key.spki()
	if err != nil {
		return model.Credential{}, err
	}

	switch obj.Fmt {
	case fmtNone:
	case fmtPacked:
		if err := verifyPacked(obj.AttStmt, obj.AuthData, in.ClientDataJSON, key); err != nil {
			return model.Credential{}, err
		}
	default:
		v.log.Info("attestation format not verified", zap.String("fmt", obj.Fmt))
	}

	name := in.Name
	if name == "" {
		name = "Passkey"
	}
	cred = model.Credential{
		ID:        credID,
		UserID:    in.UserID,
		PublicKey: spki,
		Algorithm: key.alg,
		SignCount: ad.SignCount,
		AAGUID:    ad.Attested.AAGUID,
		Name:      name,
		CreatedAt: v.now(),
	}
	if err := v.creds.AddCredential(ctx, in.UserID, cred); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Credential{}, ErrDuplicateCredential
		}
		return model.Credential{}, err
	}
	return cred, nil
}

// VerifyAuthentication validates an assertion and returns the owner of the credential.
func (v *Verifier) VerifyAuthentication(ctx context.Context, in AuthenticationInput) (userID uuid.UUID, err error) {
	defer func() { v.record(model.CeremonyAuthentication, err) }()

	ch, err := v.takeChallenge(ctx, in.CeremonyID)
	if err != nil {
		return uuid.Nil, err
	}
	if len(in.CredentialID) == 0 {
		return uuid.Nil, ErrCredentialNotFound
	}
	found, err := v.creds.FindByCredentialID(ctx, in.CredentialID)
	if err != nil {
		return uuid.Nil, err
	}
	if len(found) == 0 {
		return uuid.Nil, ErrCredentialNotFound
	}
	if len(found) > 1 {
		v.log.Error("credential id integrity violation",
			zap.Int("matches", len(found)),
			zap.String("first_owner", found[0].UserID.String()))
	}
	cred := found[0]
	if len(in.UserHandle) > 0 && !bytes.Equal(in.UserHandle, cred.UserID.Bytes()) {
		return uuid.Nil, reject(ReasonCredentialNotFound, "user handle does not own credential")
	}

	status, err := v.users.GetUserStatus(ctx, cred.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return uuid.Nil, reject(ReasonCredentialNotFound, "owner no longer exists")
	}
	if err != nil {
		return uuid.Nil, err
	}
	if status != model.StatusActive {
		return uuid.Nil, &AccountInactiveError{Status: status}
	}

	cd, err := parseClientData(in.ClientDataJSON)
	if err != nil {
		return uuid.Nil, err
	}
	if cd.Type != typeGet {
		return uuid.Nil, reject(ReasonBadType, "got %q", cd.Type)
	}
	if cd.Origin != v.cfg.Origin {
		return uuid.Nil, reject(ReasonBadOrigin, "got %q", cd.Origin)
	}
	if err := v.checkChallenge(ch, model.CeremonyAuthentication, uuid.Nil, cd.Challenge); err != nil {
		return uuid.Nil, err
	}

	ad, err := parseAuthenticatorData(in.AuthenticatorData)
	if err != nil {
		return uuid.Nil, err
	}
	if err := v.checkRPIDHash(ad.RPIDHash); err != nil {
		return uuid.Nil, err
	}
	if !ad.UserPresent() {
		return uuid.Nil, ErrUserNotPresent
	}

	if err := verifySignature(cred.Algorithm, cred.PublicKey, signedData(in.AuthenticatorData, in.ClientDataJSON), in.Signature); err != nil {
		return uuid.Nil, err
	}

	// Authenticators without a counter always report zero.
	if (ad.SignCount != 0 || cred.SignCount != 0) && ad.SignCount <= cred.SignCount {
		v.log.Warn("sign count did not increase, possible cloned authenticator",
			zap.String("user_id", cred.UserID.String()),
			zap.Uint32("stored", cred.SignCount),
			zap.Uint32("received", ad.SignCount))
		return uuid.Nil, reject(ReasonSignCount, "received %d, stored %d", ad.SignCount, cred.SignCount)
	}
	if err := v.creds.UpdateSignCount(ctx, cred.ID, ad.SignCount, v.now()); err != nil {
		return uuid.Nil, err
	}
	return cred.UserID, nil
}

func (v *Verifier) record(kind model.CeremonyKind, err error) {
	result := "ok"
	var rej *RejectedError
	var inactive *AccountInactiveError
	switch {
	case err == nil:
	case errors.As(err, &rej):
		result = string(rej.Reason)
	case errors.As(err, &inactive):
		result = "account_inactive"
	default:
		result = "error"
	}
	v.metrics.Ceremony(string(kind), result)
	if err != nil {
		v.log.Debug("webauthn ceremony failed", zap.String("ceremony", string(kind)), zap.String("result", result))
	}
}
