package types

import (
	"fmt"
	"strconv"
	"time"
)

// Attachment is a file submitted with a new-hire request, uploaded to the
// tracker before the parent ticket is created.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewHireRequest is a single onboarding submission. The start date arrives as
// separate year/month/day fields, matching the submission form; it is not
// persisted anywhere and lives only for one orchestration run.
type NewHireRequest struct {
	FirstName  string
	LastName   string
	Department string
	StartYear  string
	StartMonth string
	StartDay   string

	Attachments []Attachment
}

// FullName returns "First Last".
func (r NewHireRequest) FullName() string {
	return fmt.Sprintf("%s %s", r.FirstName, r.LastName)
}

// StartDate parses the three date fields into a calendar date. Non-numeric
// components or impossible dates (Feb 30) return an error rather than a
// normalized date.
func (r NewHireRequest) StartDate() (time.Time, error) {
	year, err := strconv.Atoi(r.StartYear)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q", r.StartYear)
	}
	month, err := strconv.Atoi(r.StartMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q", r.StartMonth)
	}
	day, err := strconv.Atoi(r.StartDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q", r.StartDay)
	}

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow (Feb 30 becomes Mar 2); reject that.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, fmt.Errorf("no such date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}

// SkippedTask records a child ticket that was not filed because its owning
// role or the role's tracker login could not be resolved.
type SkippedTask struct {
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// FailedTask records the child ticket whose tracker call failed, ending the
// run early. Tickets created before it are kept.
type FailedTask struct {
	Subject string `json:"subject"`
	Error   string `json:"error"`
}

// IssueCreationResult lists every ticket a run actually created so an
// operator can reconcile a partial result by hand. ChildIssueIDs preserves
// creation order.
type IssueCreationResult struct {
	RunID         string        `json:"run_id"`
	ParentIssueID int           `json:"parent_issue_id"`
	ChildIssueIDs []int         `json:"child_issue_ids"`
	SkippedTasks  []SkippedTask `json:"skipped_tasks,omitempty"`
	FailedTask    *FailedTask   `json:"failed_task,omitempty"`
}
