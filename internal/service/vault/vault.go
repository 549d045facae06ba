// Package vault encrypts, stores and validity-tests per-user service
// credentials. Secrets are sealed with AES-256-GCM under a process-wide
// master key and only ever leave the package through Reveal, which is an
// internal-use call; everything user-facing works with masked previews.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/iadityaojha/postflow/internal/models"
)

var (
	ErrNotFound         = errors.New("credential not found")
	ErrAccessDenied     = errors.New("credential belongs to another user")
	ErrDecryptionFailed = errors.New("credential could not be decrypted")
	ErrInvalidKind      = errors.New("unsupported service kind")
	ErrEmptySecret      = errors.New("secret must not be empty")
)

const nonceSize = 12

type Vault struct {
	db     *gorm.DB
	logger *zap.Logger
	key    []byte
	prober Prober
}

// New creates a vault keyed by masterKey (32 bytes, AES-256). The prober is
// used by Test; pass NewLiveProber outside of tests.
func New(db *gorm.DB, logger *zap.Logger, masterKey []byte, prober Prober) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}
	return &Vault{
		db:     db,
		logger: logger,
		key:    masterKey,
		prober: prober,
	}, nil
}

// Store encrypts the secret and upserts the credential for (user, kind).
// An existing credential of the same kind is overwritten and its validity
// flag reset.
func (v *Vault) Store(ctx context.Context, userID uint, kind models.ServiceKind, secret string) (*models.Credential, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if secret == "" {
		return nil, ErrEmptySecret
	}

	ciphertext, err := v.seal(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}
	masked := MaskSecret(secret)

	var cred models.Credential
	err = v.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&cred).Error
	switch {
	case err == nil:
		cred.Ciphertext = ciphertext
		cred.MaskedKey = masked
		cred.IsValid = true
		cred.LastValidated = nil
		if err := v.db.WithContext(ctx).Save(&cred).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		cred = models.Credential{
			UserID:     userID,
			Kind:       kind,
			Ciphertext: ciphertext,
			MaskedKey:  masked,
			IsValid:    true,
		}
		if err := v.db.WithContext(ctx).Create(&cred).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	v.logger.Info("Credential stored",
		zap.Uint("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Uint("credential_id", cred.ID))
	return &cred, nil
}

// Reveal decrypts a credential for internal use. Ownership is checked before
// any decryption happens.
func (v *Vault) Reveal(ctx context.Context, userID, credentialID uint) (string, error) {
	var cred models.Credential
	if err := v.db.WithContext(ctx).First(&cred, credentialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if cred.UserID != userID {
		return "", ErrAccessDenied
	}
	return v.open(cred.Ciphertext)
}

// RevealKind decrypts the user's credential for a service kind, if one is
// configured. The delivery scheduler uses this to resolve platform tokens.
func (v *Vault) RevealKind(ctx context.Context, userID uint, kind models.ServiceKind) (string, error) {
	cred, err := v.byKind(ctx, userID, kind)
	if err != nil {
		return "", err
	}
	return v.open(cred.Ciphertext)
}

// Test decrypts the credential and performs one minimal authenticated call
// against its service, then records the outcome on the validity flag.
func (v *Vault) Test(ctx context.Context, userID, credentialID uint) (*TestResult, error) {
	var cred models.Credential
	if err := v.db.WithContext(ctx).First(&cred, credentialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if cred.UserID != userID {
		return nil, ErrAccessDenied
	}

	result := &TestResult{Valid: true, Message: fmt.Sprintf("%s credential is valid", cred.Kind)}
	secret, err := v.open(cred.Ciphertext)
	if err != nil {
		result.Valid = false
		result.Message = "stored credential could not be decrypted"
	} else if err := v.prober.Probe(ctx, cred.Kind, secret); err != nil {
		result.Valid = false
		result.Message = err.Error()
	}

	now := time.Now().UTC()
	cred.IsValid = result.Valid
	cred.LastValidated = &now
	if err := v.db.WithContext(ctx).Save(&cred).Error; err != nil {
		return nil, err
	}

	v.logger.Info("Credential tested",
		zap.Uint("credential_id", cred.ID),
		zap.String("kind", string(cred.Kind)),
		zap.Bool("valid", result.Valid))
	return result, nil
}

// Delete removes the credential. Deleting an absent credential is a no-op.
func (v *Vault) Delete(ctx context.Context, userID, credentialID uint) error {
	var cred models.Credential
	if err := v.db.WithContext(ctx).First(&cred, credentialID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if cred.UserID != userID {
		return ErrAccessDenied
	}
	return v.db.WithContext(ctx).Delete(&cred).Error
}

// Status reports, per service kind, whether a credential exists for the user.
// Existence is independent of validity: a stale token still counts as
// configured so delivery can attempt it and surface the platform's error.
func (v *Vault) Status(ctx context.Context, userID uint) (map[models.ServiceKind]bool, error) {
	var creds []models.Credential
	if err := v.db.WithContext(ctx).Where("user_id = ?", userID).Find(&creds).Error; err != nil {
		return nil, err
	}

	status := make(map[models.ServiceKind]bool, len(models.ServiceKinds))
	for _, kind := range models.ServiceKinds {
		status[kind] = false
	}
	for _, c := range creds {
		status[c.Kind] = true
	}
	return status, nil
}

// List returns the user's credentials with ciphertext cleared; only the
// masked preview is exposed.
func (v *Vault) List(ctx context.Context, userID uint) ([]models.Credential, error) {
	var creds []models.Credential
	if err := v.db.WithContext(ctx).Where("user_id = ?", userID).Order("kind ASC").Find(&creds).Error; err != nil {
		return nil, err
	}
	for i := range creds {
		creds[i].Ciphertext = ""
	}
	return creds, nil
}

type TestResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

func (v *Vault) byKind(ctx context.Context, userID uint, kind models.ServiceKind) (*models.Credential, error) {
	var cred models.Credential
	err := v.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// seal encrypts plaintext with AES-GCM and returns base64(nonce||ciphertext).
func (v *Vault) seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		// Wrong master key or corrupted row; the GCM tag check failed.
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// MaskSecret renders a displayable preview: bullet padding plus the last four
// characters. Short secrets are fully bulleted so nothing leaks.
func MaskSecret(secret string) string {
	const visible = 4
	if secret == "" || len(secret) <= visible {
		return "••••••••"
	}
	padded := len(secret) - visible
	if padded > 12 {
		padded = 12
	}
	return strings.Repeat("•", padded) + secret[len(secret)-visible:]
}
