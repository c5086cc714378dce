package model

import "errors"

// Rejection kinds. Every named registry error matches exactly one of them
// through errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrState         = errors.New("invalid state")
	ErrAuthorization = errors.New("not authorized")
)

// RegistryError is a named rejection of a registry call. A rejected call
// leaves no observable state change.
type RegistryError struct {
	Code    string
	Message string
	Kind    error
}

func (e *RegistryError) Error() string { return e.Message }

// Is reports whether target is the kind of e.
func (e *RegistryError) Is(target error) bool { return target == e.Kind }

func newError(kind error, code, message string) *RegistryError {
	return &RegistryError{Code: code, Message: message, Kind: kind}
}

// Validation errors.
var (
	ErrEmptyName        = newError(ErrValidation, "empty_name", "Name cannot be empty")
	ErrEmptyTitle       = newError(ErrValidation, "empty_title", "Title cannot be empty")
	ErrEmptyDescription = newError(ErrValidation, "empty_description", "Description cannot be empty")
	ErrInvalidBudget    = newError(ErrValidation, "invalid_budget", "Budget must be greater than 0")
	ErrInvalidAmount    = newError(ErrValidation, "invalid_amount", "Amount must be a non-negative integer below 2^256")
	ErrDeadlineInPast   = newError(ErrValidation, "deadline_in_past", "Deadline must be in the future")
	ErrInvalidIdentity  = newError(ErrValidation, "invalid_identity", "Identity must be a non-zero 0x-prefixed 20-byte hex address")
)

// State errors.
var (
	ErrAlreadyRegistered = newError(ErrState, "already_registered", "Talent already registered")
	ErrNotRegistered     = newError(ErrState, "not_registered", "Talent not registered")
	ErrProjectNotFound   = newError(ErrState, "project_not_found", "Project does not exist")
	ErrProjectNotActive  = newError(ErrState, "project_not_active", "Project is not active")
	ErrTalentNotFound    = newError(ErrState, "talent_not_found", "Talent does not exist")
)

// Authorization errors.
var (
	ErrNotOwner          = newError(ErrAuthorization, "not_owner", "Ownable: caller is not the owner")
	ErrNotProjectClient  = newError(ErrAuthorization, "not_project_client", "Only the project client can perform this action")
	ErrTalentNotVerified = newError(ErrAuthorization, "talent_not_verified", "Talent is not verified")
)

// AsRegistryError returns the registry rejection wrapped in err, if any.
func AsRegistryError(err error) (*RegistryError, bool) {
	var re *RegistryError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Code returns the stable code of a registry rejection, or "" for any other error.
func Code(err error) string {
	if re, ok := AsRegistryError(err); ok {
		return re.Code
	}
	return ""
}

// IsNotFound reports whether err is one of the state errors for a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrTalentNotFound)
}
