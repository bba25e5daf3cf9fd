//go:generate go run go.uber.org/mock/mockgen -source=account.go -destination=../mocks/mock_account_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"talk-lab/domain"
	apperrors "talk-lab/errors"
)

// IAccountRepository persists accounts and directory groups, and doubles as
// the identity resolver the room service consumes.
type IAccountRepository interface {
	CreateUser(email, displayName, hashedPassword string) (string, error)
	GetUserByEmail(email string) (Account, error)
	ResolveUser(id string) (domain.User, error)
	CreateGroup(name string, memberIDs []string) error
	ResolveGroup(name string) (domain.Group, []domain.User, error)
}

// Account is the repository-layer representation of a registered user,
// password hash included. Room code only ever sees domain.User.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type groupRecord struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// AccountRepository stores accounts in BadgerDB. Key layout:
//
//	user:{id}       account record
//	email:{email}   email -> user id
//	group:{name}    group record with member ids
type AccountRepository struct {
	db *badger.DB
}

func NewAccountRepository(db *badger.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateUser persists a new account and returns the generated user ID.
// The email must be unused.
func (a *AccountRepository) CreateUser(email, displayName, hashedPassword string) (string, error) {
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	err := a.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("email:" + email)
		if _, err := txn.Get(emailKey); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := setJSON(txn, "user:"+account.ID, account); err != nil {
			return err
		}
		return txn.Set(emailKey, []byte(account.ID))
	})
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (a *AccountRepository) GetUserByEmail(email string) (Account, error) {
	var account Account
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("email:" + email))
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, "user:"+id, &account)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Account{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get user by email: %w", err)
	}
	return account, nil
}

// ResolveUser implements the identity-resolver contract for a single user.
func (a *AccountRepository) ResolveUser(id string) (domain.User, error) {
	var account Account
	err := a.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, "user:"+id, &account)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user %s: %w", id, err)
	}
	return toUser(account), nil
}

func (a *AccountRepository) CreateGroup(name string, memberIDs []string) error {
	rec := groupRecord{Name: name, Members: memberIDs}
	return a.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, "group:"+name, rec)
	})
}

// ResolveGroup returns the group and its resolvable members. Members whose
// account disappeared are dropped silently.
func (a *AccountRepository) ResolveGroup(name string) (domain.Group, []domain.User, error) {
	var rec groupRecord
	var members []domain.User
	err := a.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, "group:"+name, &rec); err != nil {
			return err
		}
		for _, id := range rec.Members {
			var account Account
			if err := getJSON(txn, "user:"+id, &account); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			members = append(members, toUser(account))
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Group{}, nil, apperrors.ErrGroupNotFound
	}
	if err != nil {
		return domain.Group{}, nil, fmt.Errorf("resolve group %s: %w", name, err)
	}
	return domain.Group{Name: rec.Name}, members, nil
}

func toUser(account Account) domain.User {
	return domain.User{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}
}
