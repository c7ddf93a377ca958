// Package onboarding implements the onboarding request pipeline: validating
// a new-hire submission and driving the sequence of tracker calls that files
// one parent ticket plus one child ticket per applicable task.
package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/onboarder/internal/redmine"
	"github.com/clintrovert/onboarder/internal/roster"
	"github.com/clintrovert/onboarder/internal/store"
	"github.com/clintrovert/onboarder/pkg/types"
)

// Tracker is the slice of the issue tracker the orchestrator drives.
// *redmine.Client satisfies it.
type Tracker interface {
	Projects(ctx context.Context) ([]redmine.Project, error)
	Users(ctx context.Context) ([]redmine.User, error)
	PostAttachment(ctx context.Context, data []byte) (string, error)
	PostIssue(ctx context.Context, issue redmine.IssueRequest) (int, error)
	ServerURI() string
}

// Orchestrator sequences one onboarding run: attachment uploads, parent
// ticket, then child tickets in task order. The sequence is best-effort past
// the parent ticket: tickets already created are never deleted, and the
// result reports exactly which identifiers exist so an operator can
// reconcile a partial run by hand.
type Orchestrator struct {
	roster    *roster.Service
	store     *store.Store
	tracker   Tracker
	validator *Validator
	logger    *zap.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(rs *roster.Service, st *store.Store, tracker Tracker, validator *Validator, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		roster:    rs,
		store:     st,
		tracker:   tracker,
		validator: validator,
		logger:    logger,
	}
}

// ValidateAndSubmit validates a submission and, if it passes, runs the full
// orchestration. Rejections surface as *ValidationError with no side effect.
func (o *Orchestrator) ValidateAndSubmit(ctx context.Context, req types.NewHireRequest) (*types.IssueCreationResult, error) {
	if err := o.validator.Validate(ctx, req); err != nil {
		return nil, err
	}
	return o.Run(ctx, req)
}

// Run executes one orchestration run for a validated request. A non-nil
// error means no ticket was created; once the parent ticket exists, child
// failures are folded into the result instead.
func (o *Orchestrator) Run(ctx context.Context, req types.NewHireRequest) (*types.IssueCreationResult, error) {
	runID := uuid.NewString()
	logger := o.logger.With(
		zap.String("run_id", runID),
		zap.String("new_hire", req.FullName()),
	)

	start, err := req.StartDate()
	if err != nil {
		return nil, fmt.Errorf("parsing start date: %w", err)
	}
	dueDate := start.Format("2006-01-02")

	// Config is read up front; no store transaction is held across any of
	// the tracker calls below.
	projectIdent, err := o.store.Read(ctx, store.ConfigDefaultProject)
	if err != nil {
		return nil, err
	}
	managerLogin, err := o.store.Read(ctx, store.ConfigHiringManager)
	if err != nil {
		return nil, err
	}

	projectID, err := o.projectID(ctx, projectIdent)
	if err != nil {
		return nil, err
	}
	userIDs, err := o.userIDsByLogin(ctx)
	if err != nil {
		return nil, err
	}
	managerID, ok := userIDs[managerLogin]
	if !ok {
		return nil, fmt.Errorf("hiring manager %q is not a tracker user", managerLogin)
	}

	// Upload every attachment before any ticket exists. One failed upload
	// aborts the run with nothing created.
	uploads := make([]redmine.Upload, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		token, err := o.tracker.PostAttachment(ctx, att.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", att.Filename, err)
		}
		uploads = append(uploads, redmine.Upload{
			Token:       token,
			Filename:    att.Filename,
			ContentType: att.ContentType,
		})
	}

	fullName := req.FullName()
	parentID, err := o.tracker.PostIssue(ctx, redmine.IssueRequest{
		ProjectID:    projectID,
		Subject:      fmt.Sprintf("Onboarding %s", fullName),
		Description:  fmt.Sprintf("Parent ticket for onboarding %s", fullName),
		AssignedToID: managerID,
		DueDate:      dueDate,
		Uploads:      uploads,
	})
	if err != nil {
		return nil, fmt.Errorf("creating parent ticket: %w", err)
	}

	result := &types.IssueCreationResult{
		RunID:         runID,
		ParentIssueID: parentID,
	}
	logger.Info("created parent ticket", zap.Int("issue_id", parentID))

	// An empty task list is not an error; a department may legitimately
	// have no tasks, and the run completes with only the parent ticket.
	tasks, err := o.roster.TasksForDepartment(ctx, req.Department)
	if err != nil {
		logger.Error("task resolution failed after parent creation", zap.Error(err))
		result.FailedTask = &types.FailedTask{Subject: req.Department, Error: err.Error()}
		return result, nil
	}

	for _, task := range tasks {
		login, err := o.roster.AssigneeForRole(ctx, task.Role)
		if err != nil {
			var nf *roster.NotFoundError
			if errors.As(err, &nf) {
				// Unresolved role skips this one child; the rest of
				// the run continues.
				logger.Warn("skipping task with unresolved role",
					zap.String("subject", task.Subject),
					zap.String("role", task.Role),
				)
				result.SkippedTasks = append(result.SkippedTasks,
					types.SkippedTask{Subject: task.Subject, Reason: err.Error()})
				continue
			}
			result.FailedTask = &types.FailedTask{Subject: task.Subject, Error: err.Error()}
			return result, nil
		}
		assigneeID, ok := userIDs[login]
		if !ok {
			logger.Warn("skipping task, assignee unknown to tracker",
				zap.String("subject", task.Subject),
				zap.String("login", login),
			)
			result.SkippedTasks = append(result.SkippedTasks, types.SkippedTask{
				Subject: task.Subject,
				Reason:  fmt.Sprintf("login %q is not a tracker user", login),
			})
			continue
		}

		childID, err := o.tracker.PostIssue(ctx, redmine.IssueRequest{
			ProjectID:     projectID,
			Subject:       fmt.Sprintf("%s - %s", fullName, task.Subject),
			Description:   task.LongDescr,
			AssignedToID:  assigneeID,
			DueDate:       dueDate,
			ParentIssueID: parentID,
		})
		if err != nil {
			// No rollback and no retry: tickets already filed stay,
			// and the remaining tasks are not attempted.
			logger.Error("child ticket creation failed",
				zap.String("subject", task.Subject),
				zap.Error(err),
			)
			result.FailedTask = &types.FailedTask{Subject: task.Subject, Error: err.Error()}
			return result, nil
		}
		result.ChildIssueIDs = append(result.ChildIssueIDs, childID)
		logger.Info("created child ticket",
			zap.Int("issue_id", childID),
			zap.String("subject", task.Subject),
		)
	}

	logger.Info("onboarding run complete",
		zap.Int("parent_issue_id", result.ParentIssueID),
		zap.Int("child_tickets", len(result.ChildIssueIDs)),
		zap.Int("skipped_tasks", len(result.SkippedTasks)),
	)
	return result, nil
}

func (o *Orchestrator) projectID(ctx context.Context, identifier string) (int, error) {
	projects, err := o.tracker.Projects(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range projects {
		if p.Identifier == identifier {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("project %q not found on tracker", identifier)
}

func (o *Orchestrator) userIDsByLogin(ctx context.Context) (map[string]int, error) {
	users, err := o.tracker.Users(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int, len(users))
	for _, u := range users {
		ids[u.Login] = u.ID
	}
	return ids, nil
}
