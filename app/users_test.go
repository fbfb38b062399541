package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/hasher"
	"github.com/ledgerdesk/ledgerdesk/adapters/idgen"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/rs/zerolog"
)

func newUserFixture() (*UserService, *mockUserStore) {
	users := &mockUserStore{}
	svc := NewUserService(
		users,
		hasher.Fake{},
		clock.NewFake(testTime),
		idgen.NewSequential("u_"),
		zerolog.Nop(),
	)
	return svc, users
}

func TestUserCreate(t *testing.T) {
	svc, _ := newUserFixture()

	u, err := svc.Create(context.Background(), CreateUserInput{
		Email:       "Ana@Example.com",
		Name:        "Ana",
		Password:    "s3cret-pass",
		Permissions: []permission.Permission{permission.ClientsWrite, permission.BillingsRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if u.Email != "ana@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if !u.Active {
		t.Error("new user must be active")
	}
	if string(u.PasswordHash) != "s3cret-pass" {
		t.Errorf("password hash = %q", u.PasswordHash)
	}
}

func TestUserCreate_Validation(t *testing.T) {
	svc, _ := newUserFixture()

	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"empty email", CreateUserInput{Password: "s3cret-pass"}},
		{"short password", CreateUserInput{Email: "a@b.com", Password: "short"}},
		{"unknown permission", CreateUserInput{
			Email:       "a@b.com",
			Password:    "s3cret-pass",
			Permissions: []permission.Permission{permission.Permission("root")},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); !IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newUserFixture()

	in := CreateUserInput{Email: "ana@example.com", Password: "s3cret-pass"}
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); !IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestUserAuthenticate(t *testing.T) {
	svc, _ := newUserFixture()
	created, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	u, err := svc.Authenticate(context.Background(), "Ana@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != created.ID {
		t.Errorf("user ID = %q, want %q", u.ID, created.ID)
	}

	if _, err := svc.Authenticate(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserAuthenticate_Inactive(t *testing.T) {
	svc, _ := newUserFixture()
	created, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inactive := false
	if _, err := svc.Update(context.Background(), created.ID, UpdateUserInput{Active: &inactive}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "ana@example.com", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserUpdate_Permissions(t *testing.T) {
	svc, _ := newUserFixture()
	created, err := svc.Create(context.Background(), CreateUserInput{
		Email:       "ana@example.com",
		Password:    "s3cret-pass",
		Permissions: []permission.Permission{permission.ClientsRead},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	u, err := svc.Update(context.Background(), created.ID, UpdateUserInput{
		Permissions: []permission.Permission{permission.UsersManage},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(u.Permissions) != 1 || u.Permissions[0] != permission.UsersManage {
		t.Errorf("permissions = %v, want [users:manage]", u.Permissions)
	}

	_, err = svc.Update(context.Background(), created.ID, UpdateUserInput{
		Permissions: []permission.Permission{permission.Permission("bogus")},
	})
	if !IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestUserDelete(t *testing.T) {
	svc, users := newUserFixture()
	created, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := users.Get(context.Background(), created.ID); !isNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
