package usecase

import (
	"errors"

	"bizportal-backend/internal/mail/domain"
	"bizportal-backend/internal/mail/repository"
	"bizportal-backend/pkg/crypto"
)

// ConnectAccountParams carries the OAuth grant obtained by the portal
// frontend for a mailbox the user wants connected
type ConnectAccountParams struct {
	UserID       string
	Email        string
	Provider     string
	AccessToken  string
	RefreshToken string
}

// AccountUsecase connects mailbox accounts and encrypts their OAuth
// tokens at rest
type AccountUsecase struct {
	accountRepo repository.AccountRepository
	cipher      *crypto.Cipher
}

// NewAccountUsecase creates the account usecase
func NewAccountUsecase(accountRepo repository.AccountRepository, cipher *crypto.Cipher) *AccountUsecase {
	return &AccountUsecase{
		accountRepo: accountRepo,
		cipher:      cipher,
	}
}

// Connect stores a newly granted mailbox account. Reconnecting an already
// known address replaces its stored tokens instead of creating a row.
func (u *AccountUsecase) Connect(params ConnectAccountParams) (*domain.Account, error) {
	if params.Email == "" || params.AccessToken == "" {
		return nil, errors.New("email and access token are required")
	}

	encAccess, err := u.cipher.Encrypt(params.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh := ""
	if params.RefreshToken != "" {
		encRefresh, err = u.cipher.Encrypt(params.RefreshToken)
		if err != nil {
			return nil, err
		}
	}

	existing, err := u.accountRepo.FindByEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := u.accountRepo.UpdateTokens(existing.ID, encAccess, encRefresh); err != nil {
			return nil, err
		}
		return u.accountRepo.FindByID(existing.ID)
	}

	provider := params.Provider
	if provider == "" {
		provider = "google"
	}

	account := &domain.Account{
		UserID:                params.UserID,
		Email:                 params.Email,
		Provider:              provider,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
	}
	if err := u.accountRepo.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount returns one connected account
func (u *AccountUsecase) GetAccount(id string) (*domain.Account, error) {
	return u.accountRepo.FindByID(id)
}

// ListAccounts returns the user's connected accounts
func (u *AccountUsecase) ListAccounts(userID string) ([]*domain.Account, error) {
	return u.accountRepo.ListByUser(userID)
}
