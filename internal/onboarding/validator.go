package onboarding

import (
	"context"
	"strings"
	"time"

	"github.com/clintrovert/onboarder/internal/roster"
	"github.com/clintrovert/onboarder/internal/store"
	"github.com/clintrovert/onboarder/pkg/types"
)

// Validation error codes. Each maps one corrective action the submitter or
// operator can take; the boundary renders Message and keys behavior off Code.
const (
	CodeEmptyName            = "empty-name"
	CodeEmptyDepartment      = "empty-department"
	CodeInvalidDate          = "invalid-date"
	CodePastDate             = "past-date"
	CodeMissingProjectConfig = "missing-project-config"
	CodeMissingManagerConfig = "missing-manager-config"
	CodeNoTasksDefined       = "no-tasks-defined"
	CodeNoRolesDefined       = "no-roles-defined"
)

// ValidationError rejects a new-hire submission before any external side
// effect has happened.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validator gates the orchestrator. Checks run in a fixed order and stop at
// the first failure, so the submitter sees one corrective message at a time.
// Validation reads the store but performs no tracker I/O and has no side
// effects.
type Validator struct {
	roster *roster.Service

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// NewValidator creates a new validator.
func NewValidator(rs *roster.Service) *Validator {
	return &Validator{roster: rs, Now: time.Now}
}

// Validate checks that a submission is complete, that its start date is a
// real future date, and that the store holds enough configuration to file
// tickets. It returns a *ValidationError on rejection.
func (v *Validator) Validate(ctx context.Context, req types.NewHireRequest) error {
	if blank(req.FirstName) || blank(req.LastName) {
		return &ValidationError{Code: CodeEmptyName,
			Message: "please provide both a first and a last name"}
	}
	if blank(req.Department) {
		return &ValidationError{Code: CodeEmptyDepartment,
			Message: "please provide the new hire's department"}
	}
	if blank(req.StartYear) || blank(req.StartMonth) || blank(req.StartDay) {
		return &ValidationError{Code: CodeInvalidDate,
			Message: "please provide a valid start date"}
	}

	start, err := req.StartDate()
	if err != nil {
		return &ValidationError{Code: CodeInvalidDate,
			Message: "please provide a valid start date"}
	}
	if !start.After(v.Now()) {
		return &ValidationError{Code: CodePastDate,
			Message: "the start date must be in the future"}
	}

	project, err := v.roster.Config(ctx, store.ConfigDefaultProject)
	if err != nil {
		return err
	}
	if project == "" {
		return &ValidationError{Code: CodeMissingProjectConfig,
			Message: "please configure the Redmine project onboarding tickets are filed under"}
	}

	manager, err := v.roster.Config(ctx, store.ConfigHiringManager)
	if err != nil {
		return err
	}
	if manager == "" {
		return &ValidationError{Code: CodeMissingManagerConfig,
			Message: "please configure the hiring manager"}
	}

	tasks, err := v.roster.Tasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return &ValidationError{Code: CodeNoTasksDefined,
			Message: "please define at least one onboarding task"}
	}

	roles, err := v.roster.Roles(ctx)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return &ValidationError{Code: CodeNoRolesDefined,
			Message: "please define at least one role"}
	}

	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
