//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
}

// UserRepository keeps the accounts of the local identity provider.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type User struct {
	ID           string    `cbor:"1,keyasint"`
	Email        string    `cbor:"2,keyasint"`
	PasswordHash string    `cbor:"3,keyasint"`
	Roles        []string  `cbor:"4,keyasint"`
	CreatedAt    time.Time `cbor:"5,keyasint"`
}

func userKey(email string) []byte {
	return []byte(userPrefix + strings.ToLower(email))
}

// CreateUser persists a new account and returns its generated id.
// Emails are unique, case-insensitively. A concurrent registration of the
// same email loses the transaction and reports errors.ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(email, hashedPassword string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}
	data, err := cbor.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if stderrors.Is(err, badger.ErrConflict) {
		return "", errors.ErrUserAlreadyExists
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// GetUserByEmail returns errors.ErrInvalidCredentials for an unknown email.
func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &user)
		})
	})
	return user, err
}
