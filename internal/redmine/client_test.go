package redmine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret-key", 5*time.Second, zap.NewNop()), srv
}

func TestPostAttachment_ReturnsToken(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotAPIKey string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/uploads.json", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")
		gotAPIKey = r.Header.Get("X-Redmine-API-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"upload":{"token":"7167.ed1ccdb0"}}`)
	}))

	token, err := client.PostAttachment(context.Background(), []byte("file-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "7167.ed1ccdb0", token)
	assert.Equal(t, []byte("file-bytes"), gotBody)
	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, "secret-key", gotAPIKey)
}

func TestPostAttachment_FailureCarriesBodyVerbatim(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":["attachment is too large"]}`)
	}))

	_, err := client.PostAttachment(context.Background(), []byte("big"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, `{"errors":["attachment is too large"]}`, apiErr.Error())
}

func TestPostIssue_SendsParentLinkAndUploads(t *testing.T) {
	var got map[string]map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/issues.json", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"issue":{"id":4242}}`)
	}))

	id, err := client.PostIssue(context.Background(), IssueRequest{
		ProjectID:     7,
		Subject:       "Ada Lovelace - Laptop",
		Description:   "Order and image a laptop.",
		AssignedToID:  2,
		DueDate:       "2031-09-15",
		ParentIssueID: 4100,
		Uploads: []Upload{
			{Token: "tok", Filename: "offer.pdf", ContentType: "application/pdf"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4242, id)

	issue := got["issue"]
	assert.Equal(t, float64(7), issue["project_id"])
	assert.Equal(t, "Ada Lovelace - Laptop", issue["subject"])
	assert.Equal(t, float64(2), issue["assigned_to_id"])
	assert.Equal(t, "2031-09-15", issue["due_date"])
	assert.Equal(t, float64(4100), issue["parent_issue_id"])
	require.Len(t, issue["uploads"], 1)
}

func TestPostIssue_OmitsParentLinkForParentTickets(t *testing.T) {
	var raw []byte

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"issue":{"id":4100}}`)
	}))

	_, err := client.PostIssue(context.Background(), IssueRequest{
		ProjectID:    7,
		Subject:      "Onboarding Ada Lovelace",
		AssignedToID: 1,
		DueDate:      "2031-09-15",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "parent_issue_id")
	assert.NotContains(t, string(raw), "uploads")
}

func TestProjects_FollowsPagination(t *testing.T) {
	const total = 150

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects.json", r.URL.Path)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		count := pageSize
		if offset+count > total {
			count = total - offset
		}
		projects := make([]Project, 0, count)
		for i := 0; i < count; i++ {
			n := offset + i
			projects = append(projects, Project{
				ID:         n,
				Identifier: fmt.Sprintf("proj-%d", n),
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"projects":    projects,
			"total_count": total,
		})
	}))

	projects, err := client.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, total)
	assert.Equal(t, "proj-149", projects[149].Identifier)
}

func TestUsers_SinglePage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users.json", r.URL.Path)
		require.Equal(t, "secret-key", r.Header.Get("X-Redmine-API-Key"))
		fmt.Fprint(w, `{"users":[{"id":1,"login":"mgr","firstname":"Mary","lastname":"Garcia"}],"total_count":1}`)
	}))

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "mgr", users[0].Login)
	assert.Equal(t, "Mary", users[0].Firstname)
}
