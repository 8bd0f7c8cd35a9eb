// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/breadsocial/bread/internal/docstore"
)

// UsersCollection is the document collection holding users.
const UsersCollection = "users"

// ProfileColor is the color shown in place of a profile picture.
type ProfileColor string

// Profile colors.
const (
	ProfileOrange ProfileColor = "Orange"
	ProfileRed    ProfileColor = "Red"
	ProfileGreen  ProfileColor = "Green"
	ProfileBlue   ProfileColor = "Blue"
	ProfileGrey   ProfileColor = "Grey"
)

// Valid reports whether c is one of the known colors.
func (c ProfileColor) Valid() bool {
	switch c {
	case ProfileOrange, ProfileRed, ProfileGreen, ProfileBlue, ProfileGrey:
		return true
	}
	return false
}

// Preferences are per-user display settings.
type Preferences struct {
	PrefersDarkmode bool         `bson:"prefers_darkmode" json:"prefers_darkmode"`
	ProfileColor    ProfileColor `bson:"profile_color" json:"profile_color"`
}

// DefaultPreferences are applied to every newly registered user.
func DefaultPreferences() Preferences {
	return Preferences{PrefersDarkmode: true, ProfileColor: ProfileOrange}
}

// User is an account. ID is empty until the user has been persisted.
// Password always holds a hash.
type User struct {
	ID          docstore.ID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name        string      `bson:"name" json:"name"`
	Password    string      `bson:"password" json:"password"`
	Preferences Preferences `bson:"preferences" json:"preferences"`
}

// NewUser builds an unpersisted user with default preferences.
func NewUser(name, passwordHash string) (*User, error) {
	if name == "" {
		return nil, oops.Code("USER_INVALID_NAME").Wrap(fmt.Errorf("%w: name cannot be empty", ErrValidation))
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD").Wrap(fmt.Errorf("%w: password hash cannot be empty", ErrValidation))
	}
	return &User{Name: name, Password: passwordHash, Preferences: DefaultPreferences()}, nil
}

// UserRepository is the user persistence the Service depends on.
type UserRepository interface {
	FindByName(ctx context.Context, name string) (*User, error)
	FindByID(ctx context.Context, id docstore.ID) (*User, error)
	Register(ctx context.Context, name, password string) (docstore.ID, error)
	ChangePassword(ctx context.Context, name, newHash string) error
	Delete(ctx context.Context, id docstore.ID) error
}

// UserDirectory stores users in the users collection. Names are matched
// exactly and case-sensitively.
type UserDirectory struct {
	store  docstore.Store
	hasher PasswordHasher
}

// NewUserDirectory creates a UserDirectory over store.
func NewUserDirectory(store docstore.Store, hasher PasswordHasher) (*UserDirectory, error) {
	if store == nil {
		return nil, oops.Errorf("document store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &UserDirectory{store: store, hasher: hasher}, nil
}

// EnsureIndexes creates the unique index on name that closes the
// check-then-insert window in Register.
func (d *UserDirectory) EnsureIndexes(ctx context.Context) error {
	if err := d.store.EnsureUnique(ctx, UsersCollection, "name"); err != nil {
		return oops.Code("USER_INDEX_FAILED").Wrap(err)
	}
	return nil
}

// FindByName returns the user called name, or nil if there is none.
func (d *UserDirectory) FindByName(ctx context.Context, name string) (*User, error) {
	return d.findOne(ctx, docstore.Filter{"name": name})
}

// FindByID returns the user with id, or nil if there is none.
func (d *UserDirectory) FindByID(ctx context.Context, id docstore.ID) (*User, error) {
	if id.IsZero() {
		return nil, nil
	}
	return d.findOne(ctx, docstore.ByID(id))
}

func (d *UserDirectory) findOne(ctx context.Context, filter docstore.Filter) (*User, error) {
	var u User
	err := d.store.FindOne(ctx, UsersCollection, filter, &u)
	if errors.Is(err, docstore.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	return &u, nil
}

// Register hashes password and inserts a new user named name.
//
// The existence check and the insert are separate store calls. A concurrent
// registration of the same name is caught by the unique index from
// EnsureIndexes and reported as ErrValidation; without the index both
// inserts succeed.
func (d *UserDirectory) Register(ctx context.Context, name, password string) (docstore.ID, error) {
	if name == "" {
		return "", oops.Code("USER_INVALID_NAME").Wrap(fmt.Errorf("%w: name cannot be empty", ErrValidation))
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	user, err := NewUser(name, hash)
	if err != nil {
		return "", err
	}

	existing, err := d.FindByName(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", nameTaken(name)
	}

	id, err := d.store.InsertOne(ctx, UsersCollection, user)
	if errors.Is(err, docstore.ErrDuplicateKey) {
		return "", nameTaken(name)
	}
	if err != nil {
		return "", oops.Code("USER_INSERT_FAILED").With("name", name).Wrap(err)
	}
	return id, nil
}

func nameTaken(name string) error {
	return oops.Code("USER_NAME_TAKEN").
		With("name", name).
		Wrap(fmt.Errorf("%w: user already exists with that name", ErrValidation))
}

// ChangePassword replaces the stored hash of the user called name. The
// caller must already have verified the old password.
func (d *UserDirectory) ChangePassword(ctx context.Context, name, newHash string) error {
	if newHash == "" {
		return oops.Code("USER_INVALID_PASSWORD").Wrap(fmt.Errorf("%w: password hash cannot be empty", ErrValidation))
	}
	err := d.store.UpdateOne(ctx, UsersCollection, docstore.Filter{"name": name}, docstore.Fields{"password": newHash})
	if errors.Is(err, docstore.ErrNoDocument) {
		return oops.Code("USER_NOT_FOUND").With("name", name).Wrap(ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("name", name).Wrap(err)
	}
	return nil
}

// Delete removes the user with id. The user's posts are left in place.
func (d *UserDirectory) Delete(ctx context.Context, id docstore.ID) error {
	err := d.store.DeleteOne(ctx, UsersCollection, docstore.ByID(id))
	if errors.Is(err, docstore.ErrNoDocument) {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("user_id", id.String()).Wrap(err)
	}
	return nil
}

var _ UserRepository = (*UserDirectory)(nil)
