package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/adminportal/internal/api/validation"
	"github.com/daap14/adminportal/internal/password"
)

func fields(errs []validation.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateLogin(t *testing.T) {
	assert.Empty(t, validation.ValidateLogin("root", "pw"))
	assert.Equal(t, []string{"username", "password"}, fields(validation.ValidateLogin("  ", "")))
}

func TestValidateInvite(t *testing.T) {
	tests := []struct {
		name                             string
		email, firstName, lastName, role string
		want                             []string
	}{
		{"valid", "a@x.com", "John", "Smith", "manager", []string{}},
		{"role case insensitive", "a@x.com", "John", "Smith", "Manager", []string{}},
		{"admin role refused", "a@x.com", "John", "Smith", "admin", []string{"role"}},
		{"bad email", "John <a@x.com>", "John", "Smith", "manager", []string{"email"}},
		{"missing names", "a@x.com", "", " ", "manager", []string{"firstName", "lastName"}},
		{"long name", "a@x.com", strings.Repeat("a", 101), "Smith", "manager", []string{"firstName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fields(validation.ValidateInvite(tt.email, tt.firstName, tt.lastName, tt.role)))
		})
	}
}

func TestValidatePasswordChange(t *testing.T) {
	assert.Empty(t, validation.ValidatePasswordChange("old", "newpassword", "newpassword", 8))

	errs := validation.ValidatePasswordChange("", "short", "other", 8)
	assert.Equal(t, []string{"currentPassword", "newPassword", "confirmPassword"}, fields(errs))
	assert.Equal(t, "newPassword must be at least 8 characters long", errs[1].Message)
}

func TestValidatePassword_MaxLength(t *testing.T) {
	long := strings.Repeat("p", password.MaxLength+1)

	errs := validation.ValidateAcceptInvite("token", long, 8)
	assert.Equal(t, []string{"password"}, fields(errs))
	assert.Equal(t, "password must be at most 256 bytes long", errs[0].Message)

	assert.Empty(t, validation.ValidateAcceptInvite("token", strings.Repeat("p", 73), 8))
	assert.Equal(t, []string{"newPassword"}, fields(validation.ValidateResetPassword("a@x.com", "123456", long, 8)))
	assert.Equal(t, []string{"newPassword"}, fields(validation.ValidateManagerPasswordChange("a@x.com", long, 8)))
}

func TestValidateCode(t *testing.T) {
	assert.Empty(t, validation.ValidateCode("email", "a@x.com", "123456"))
	assert.Empty(t, validation.ValidateCode("", "", "123456"))
	assert.Equal(t, []string{"code"}, fields(validation.ValidateCode("", "", "12345a")))
	assert.Equal(t, []string{"email", "code"}, fields(validation.ValidateCode("email", "", "")))
}

func TestValidateResetPassword(t *testing.T) {
	assert.Empty(t, validation.ValidateResetPassword("a@x.com", "123456", "longenough", 8))
	assert.Equal(t, []string{"email", "code", "newPassword"},
		fields(validation.ValidateResetPassword("nope", "1", "short", 8)))
}

func TestValidateContact(t *testing.T) {
	assert.Empty(t, validation.ValidateContact("Ada", "ada@example.com", "hello"))
	assert.Equal(t, []string{"name", "email", "message"}, fields(validation.ValidateContact("", "", "")))
	assert.Equal(t, []string{"message"}, fields(validation.ValidateContact("Ada", "ada@example.com", strings.Repeat("x", 5001))))
}

func TestParseID(t *testing.T) {
	_, errs := validation.ParseID("not-a-uuid")
	assert.Equal(t, []string{"id"}, fields(errs))

	id, errs := validation.ParseID("6f1c2a8e-1b1e-4c55-9d59-4a8b1f1e2c3d")
	assert.Empty(t, errs)
	assert.Equal(t, "6f1c2a8e-1b1e-4c55-9d59-4a8b1f1e2c3d", id.String())
}
