package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/codescan/internal/application"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/infra/db/memory"
	"github.com/bryanwahyu/codescan/internal/infra/security"
)

func newService() *Service {
	return &Service{
		Users:  memory.NewStore().Users(),
		Hasher: security.NewBcryptHasher(bcrypt.MinCost),
		Tokens: security.NewTokenIssuer("test-secret", time.Hour),
		Clock:  application.SystemClock{},
	}
}

func TestRegisterLoginValidate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, " U@Test.com ", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "u@test.com", u.Email)
	assert.NotEqual(t, "pw123456", u.PasswordHash)

	token, err := svc.Login(ctx, "u@test.com", "pw123456")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestLoginFailures(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, "u@test.com", "pw123456")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     apperr.Kind
	}{
		{"wrong password", "u@test.com", "nope1234", apperr.KindUnauthorized},
		{"unknown email", "x@test.com", "pw123456", apperr.KindUnauthorized},
		{"blank", "", "", apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.Login(ctx, tt.email, tt.password)
			assert.Empty(t, token)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "pw123456")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, "not-an-email", "pw123456")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, "u@test.com", "123")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, "u@test.com", "pw123456")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "U@test.com", "pw123456")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestValidateRejects(t *testing.T) {
	svc := newService()

	_, err := svc.Validate("")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Validate("garbage")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	other, err := security.NewTokenIssuer("other-secret", time.Hour).Issue("u1")
	require.NoError(t, err)
	_, err = svc.Validate(other)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
