package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobsync/internal/model"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeJob_FillsLegacyDefaults(t *testing.T) {
	got := model.NormalizeJob(model.Job{ID: "j1", Title: "Logo"}, fixedNow)

	require.NotNil(t, got.Likes)
	require.NotNil(t, got.Comments)
	require.NotNil(t, got.Skills)
	assert.Empty(t, got.Likes)
	assert.Empty(t, got.Comments)
	assert.Equal(t, fixedNow.UnixMilli(), got.Timestamp)
	assert.Equal(t, model.DefaultUserName, got.UserName)
	assert.Equal(t, model.StatusOpen, got.Status)
}

func TestNormalizeJob_TimestampFromCreatedAt(t *testing.T) {
	cases := map[string]int64{
		"2023-01-02T03:04:05Z":      time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
		"2023-01-02T03:04:05.250Z":  time.Date(2023, 1, 2, 3, 4, 5, 250e6, time.UTC).UnixMilli(),
		"2023-01-02":                time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli(),
		"not a date":                fixedNow.UnixMilli(),
		"2023-01-02T03:04:05+02:00": time.Date(2023, 1, 2, 1, 4, 5, 0, time.UTC).UnixMilli(),
	}
	for createdAt, want := range cases {
		got := model.NormalizeJob(model.Job{ID: "j", CreatedAt: createdAt}, fixedNow)
		assert.Equal(t, want, got.Timestamp, "createdAt=%q", createdAt)
	}
}

func TestNormalizeJob_KeepsExplicitTimestamp(t *testing.T) {
	got := model.NormalizeJob(model.Job{ID: "j", Timestamp: 42, CreatedAt: "2023-01-02"}, fixedNow)
	assert.Equal(t, int64(42), got.Timestamp)
}

func TestNormalizeJob_DedupesLikes(t *testing.T) {
	got := model.NormalizeJob(model.Job{ID: "j", Likes: []string{"u1", "u2", "u1", "u3", "u2"}}, fixedNow)
	assert.Equal(t, []string{"u1", "u2", "u3"}, got.Likes)
}

func TestNormalizeJob_UnknownStatusFallsBackToOpen(t *testing.T) {
	got := model.NormalizeJob(model.Job{ID: "j", Status: "archived"}, fixedNow)
	assert.Equal(t, model.StatusOpen, got.Status)

	kept := model.NormalizeJob(model.Job{ID: "j", Status: model.StatusAssigned}, fixedNow)
	assert.Equal(t, model.StatusAssigned, kept.Status)
}

func TestNormalizeJob_NormalizesCommentTree(t *testing.T) {
	in := model.Job{
		ID: "j1",
		Comments: []model.Comment{
			{ID: "c1", Content: "hi", Replies: []model.Reply{{ID: "r1", Content: "yo"}}},
			{ID: "c2", Content: "again"},
		},
	}
	got := model.NormalizeJob(in, fixedNow)

	require.Len(t, got.Comments, 2)
	assert.Equal(t, "j1", got.Comments[0].JobID)
	assert.Equal(t, model.DefaultUserName, got.Comments[0].UserName)
	assert.Equal(t, "c1", got.Comments[0].Replies[0].CommentID)
	require.NotNil(t, got.Comments[1].Replies)
	assert.Empty(t, got.Comments[1].Replies)
}

func TestNormalizeJob_DoesNotAliasInput(t *testing.T) {
	in := model.Job{ID: "j", Likes: []string{"u1"}, Skills: []string{"go"}}
	got := model.NormalizeJob(in, fixedNow)
	got.Likes[0] = "changed"
	got.Skills[0] = "changed"

	assert.Equal(t, "u1", in.Likes[0])
	assert.Equal(t, "go", in.Skills[0])
}

func TestJobUpdate_Apply(t *testing.T) {
	title := "New title"
	budget := 250.0
	status := model.StatusAssigned
	skills := []string{"go", "sql"}
	j := model.Job{ID: "j", Title: "Old", Budget: 10, Category: "dev"}

	model.JobUpdate{Title: &title, Budget: &budget, Status: &status, Skills: &skills}.Apply(&j)

	assert.Equal(t, "New title", j.Title)
	assert.Equal(t, 250.0, j.Budget)
	assert.Equal(t, model.StatusAssigned, j.Status)
	assert.Equal(t, []string{"go", "sql"}, j.Skills)
	assert.Equal(t, "dev", j.Category)
}
