package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/repositories"
	"log/slog"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, password string) (Token, error)
	Logout(token string) error
}

// AuthService is the account front of the local identity provider.
type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	provider       *auth.LocalProvider
	validator      contract.ICredentialValidator
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository,
	provider *auth.LocalProvider, validator contract.ICredentialValidator) *AuthService {
	return &AuthService{log: log, userRepository: repo, provider: provider, validator: validator}
}

func (s *AuthService) Register(email, password string) (Token, error) {
	// Checked before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.provider.Issue(userID, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	s.log.Info("User registered", "identity", userID)
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Same answer for unknown email and bad password
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.provider.Issue(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	s.log.Debug("User logged in", "identity", user.ID)
	return Token(token), nil
}

// Logout revokes the token and drops it from the credential cache,
// so open live feeds stop at their next revalidation.
func (s *AuthService) Logout(token string) error {
	if err := s.provider.Revoke(token); err != nil {
		return err
	}
	s.validator.Invalidate(token)
	return nil
}
