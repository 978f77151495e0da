package user

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classfund/core"
)

var NowFunc = time.Now // mockable

var (
	ErrNotFound           = core.NotFoundError("user")
	ErrEmailExists        = core.NewError(core.KindAlreadyExists, "a user with this email already exists")
	ErrLastAdmin          = core.NewError(core.KindInvalidTransition, "the last admin cannot be deleted")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsers(ctx context.Context) ([]User, error) // newest first
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	NewUser struct {
		Name     string `json:"name" validate:"required,max=200"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	Credentials struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if err != ErrNotFound {
		return User{}, core.StoreError(err, "checking email")
	}

	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, core.StoreError(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	users, err := svc.repo.QueryUsers(ctx)
	return users, core.StoreError(err, "querying users")
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	return usr, core.StoreError(err, "getting user")
}

// Authenticate returns the admin owning email when pwd matches.
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	creds.Email = core.CleanString(creds.Email, true /* lower */)
	if err := svc.validate.Struct(creds); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, core.StoreError(err, "getting user")
	}
	if usr.CheckPassword(creds.Password) != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	if len(pwd) < 8 {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: "password must be at least 8 characters in length"})
	}
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return core.StoreError(err, "getting user")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return core.StoreError(err, "updating user")
}

// Delete removes an admin; at least one admin always remains.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetUser(ctx, id); err != nil {
		return core.StoreError(err, "getting user")
	}
	users, err := svc.repo.QueryUsers(ctx)
	if err != nil {
		return core.StoreError(err, "querying users")
	}
	if len(users) <= 1 {
		return ErrLastAdmin
	}
	return core.StoreError(svc.repo.DeleteUser(ctx, id), "deleting user")
}
