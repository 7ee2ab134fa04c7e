package usecase

import (
	"context"
	"time"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
	"bizportal-backend/pkg/cache"
	"bizportal-backend/pkg/crypto"

	"golang.org/x/oauth2"
)

// credentialStore decrypts stored OAuth tokens on read and re-encrypts
// refreshed tokens through the update callback. Decrypted credentials are
// held in a short-lived cache to avoid re-opening the cipher on every call.
type credentialStore struct {
	accountRepo repository.AccountRepository
	cipher      *crypto.Cipher
	credCache   *cache.Cache
	cacheTTL    time.Duration
}

// NewCredentialStore creates the credential store backing both engines
func NewCredentialStore(accountRepo repository.AccountRepository, cipher *crypto.Cipher, credCache *cache.Cache, cacheTTL time.Duration) domain.CredentialStore {
	return &credentialStore{
		accountRepo: accountRepo,
		cipher:      cipher,
		credCache:   credCache,
		cacheTTL:    cacheTTL,
	}
}

func (s *credentialStore) Decrypt(ctx context.Context, accountID string) (domain.Credentials, error) {
	cacheKey := "creds:" + accountID
	if cached, ok := s.credCache.Get(cacheKey); ok {
		if creds, ok := cached.(domain.Credentials); ok {
			return creds, nil
		}
	}

	account, err := s.accountRepo.FindByID(accountID)
	if err != nil {
		return domain.Credentials{}, err
	}
	if account == nil {
		return domain.Credentials{}, domain.ErrAccountNotFound
	}

	accessToken, err := s.cipher.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return domain.Credentials{}, err
	}

	refreshToken := ""
	if account.EncryptedRefreshToken != "" {
		refreshToken, err = s.cipher.Decrypt(account.EncryptedRefreshToken)
		if err != nil {
			return domain.Credentials{}, err
		}
	}

	creds := domain.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		OnRefresh:    s.onRefresh(accountID),
	}
	s.credCache.Set(cacheKey, creds, s.cacheTTL)
	return creds, nil
}

// onRefresh persists rotated tokens re-encrypted and drops the stale cache
// entry
func (s *credentialStore) onRefresh(accountID string) domain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
		if err != nil {
			return err
		}

		encryptedRefresh := ""
		if token.RefreshToken != "" {
			encryptedRefresh, err = s.cipher.Encrypt(token.RefreshToken)
			if err != nil {
				return err
			}
		}

		if err := s.accountRepo.UpdateTokens(accountID, encryptedAccess, encryptedRefresh); err != nil {
			return err
		}
		s.credCache.Delete("creds:" + accountID)
		return nil
	}
}

func (s *credentialStore) Invalidate(accountID string) {
	s.credCache.Delete("creds:" + accountID)
}
