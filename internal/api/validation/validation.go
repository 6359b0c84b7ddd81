package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/daap14/adminportal/internal/password"
)

const maxNameLength = 100

var codeRegex = regexp.MustCompile(`^\d{6}$`)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type collector struct {
	errs []FieldError
}

func (c *collector) add(field, message string) {
	c.errs = append(c.errs, FieldError{Field: field, Message: message})
}

func (c *collector) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.add(field, field+" is required")
		return false
	}
	return true
}

func (c *collector) email(field, value string) {
	if !c.required(field, value) {
		return
	}
	v := strings.TrimSpace(value)
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		c.add(field, field+" must be a valid email address")
	}
}

func (c *collector) password(field, value string, minLength int) {
	if value == "" {
		c.add(field, field+" is required")
		return
	}
	if len(value) < minLength {
		c.add(field, fmt.Sprintf("%s must be at least %d characters long", field, minLength))
	} else if len(value) > password.MaxLength {
		c.add(field, fmt.Sprintf("%s must be at most %d bytes long", field, password.MaxLength))
	}
}

func (c *collector) code(field, value string) {
	if !c.required(field, value) {
		return
	}
	if !codeRegex.MatchString(strings.TrimSpace(value)) {
		c.add(field, field+" must be a 6-digit code")
	}
}

func (c *collector) name(field, value string) {
	if !c.required(field, value) {
		return
	}
	if len(strings.TrimSpace(value)) > maxNameLength {
		c.add(field, fmt.Sprintf("%s must be at most %d characters", field, maxNameLength))
	}
}

// ValidateLogin checks a username/password pair for presence only.
func ValidateLogin(username, pw string) []FieldError {
	var c collector
	c.required("username", username)
	if pw == "" {
		c.add("password", "password is required")
	}
	return c.errs
}

// ValidateInvite checks an invitation request. Only managers can be invited
// through the API.
func ValidateInvite(email, firstName, lastName, role string) []FieldError {
	var c collector
	c.email("email", email)
	c.name("firstName", firstName)
	c.name("lastName", lastName)
	if strings.ToLower(strings.TrimSpace(role)) != "manager" {
		c.add("role", "role must be manager")
	}
	return c.errs
}

// ValidateAcceptInvite checks an invitation acceptance.
func ValidateAcceptInvite(token, pw string, minLength int) []FieldError {
	var c collector
	c.required("token", token)
	c.password("password", pw, minLength)
	return c.errs
}

// ValidatePasswordChange checks a self-service password change request.
func ValidatePasswordChange(current, next, confirm string, minLength int) []FieldError {
	var c collector
	if current == "" {
		c.add("currentPassword", "currentPassword is required")
	}
	c.password("newPassword", next, minLength)
	if confirm == "" {
		c.add("confirmPassword", "confirmPassword is required")
	} else if next != "" && confirm != next {
		c.add("confirmPassword", "confirmPassword must match newPassword")
	}
	return c.errs
}

// ValidateManagerPasswordChange checks an admin-initiated manager password change.
func ValidateManagerPasswordChange(managerEmail, newPassword string, minLength int) []FieldError {
	var c collector
	c.email("managerEmail", managerEmail)
	c.password("newPassword", newPassword, minLength)
	return c.errs
}

// ValidateCode checks a 6-digit verification code, with an optional email.
func ValidateCode(emailField, email, code string) []FieldError {
	var c collector
	if emailField != "" {
		c.email(emailField, email)
	}
	c.code("code", code)
	return c.errs
}

// ValidateEmail checks a single email field.
func ValidateEmail(field, email string) []FieldError {
	var c collector
	c.email(field, email)
	return c.errs
}

// ValidateResetPassword checks a password reset completion.
func ValidateResetPassword(email, code, newPassword string, minLength int) []FieldError {
	var c collector
	c.email("email", email)
	c.code("code", code)
	c.password("newPassword", newPassword, minLength)
	return c.errs
}

// ValidateContact checks a public contact form submission.
func ValidateContact(name, email, message string) []FieldError {
	var c collector
	c.name("name", name)
	c.email("email", email)
	if c.required("message", message) && len(message) > 5000 {
		c.add("message", "message must be at most 5000 characters")
	}
	return c.errs
}

// ParseID parses a path id, returning a field error when it is not a UUID.
func ParseID(raw string) (uuid.UUID, []FieldError) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, []FieldError{{Field: "id", Message: "id must be a valid UUID"}}
	}
	return id, nil
}
