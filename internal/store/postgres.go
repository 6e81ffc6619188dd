package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
)

// ─── Queries ─────────────────────────────────────────────────────────────────

const jobColumns = `
	j.id, j.title, j.description, j.budget, j.category, j.skills,
	j.user_id, j.user_name, j.user_photo, j.status,
	(EXTRACT(EPOCH FROM j.created_at) * 1000)::BIGINT,
	to_char(j.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
	to_char(j.updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
	COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at, l.user_id)
	          FROM job_likes l WHERE l.job_id = j.id), '{}')`

const commentColumns = `
	c.id, c.job_id, c.user_id, c.user_name, c.user_photo, c.content,
	(EXTRACT(EPOCH FROM c.created_at) * 1000)::BIGINT`

const replyColumns = `
	r.id, r.comment_id, r.user_id, r.user_name, r.user_photo, r.content,
	(EXTRACT(EPOCH FROM r.created_at) * 1000)::BIGINT`

// pgForeignKeyViolation is raised when a like or save targets a missing job.
const pgForeignKeyViolation = "23503"

// ─── Postgres ────────────────────────────────────────────────────────────────

// Postgres is the remote job store on PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Postgres store over pool. Call Migrate first.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ jobsync.Gateway = (*Postgres)(nil)

// ListJobs implements jobsync.Gateway. Jobs come newest first.
func (p *Postgres) ListJobs(ctx context.Context) ([]model.Job, error) {
	jobs, err := p.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs j ORDER BY j.created_at DESC, j.id`)
	if err != nil {
		return nil, fmt.Errorf("listJobs: %w", err)
	}
	return jobs, nil
}

// GetJob implements jobsync.Gateway.
func (p *Postgres) GetJob(ctx context.Context, id string) (model.Job, error) {
	jobs, err := p.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1`, id)
	if err != nil {
		return model.Job{}, fmt.Errorf("getJob: %w", err)
	}
	if len(jobs) == 0 {
		return model.Job{}, fmt.Errorf("job %s: %w", id, jobsync.ErrNotFound)
	}
	return jobs[0], nil
}

// CreateJob implements jobsync.Gateway.
func (p *Postgres) CreateJob(ctx context.Context, draft model.JobDraft) (model.Job, error) {
	status := draft.Status
	if status == "" {
		status = model.StatusOpen
	}
	skills := draft.Skills
	if skills == nil {
		skills = []string{}
	}

	var id string
	err := p.pool.QueryRow(ctx,
		`INSERT INTO jobs (title, description, budget, category, skills, user_id, user_name, user_photo, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		draft.Title, draft.Description, draft.Budget, draft.Category, skills,
		draft.UserID, draft.UserName, draft.UserPhoto, string(status),
	).Scan(&id)
	if err != nil {
		return model.Job{}, fmt.Errorf("createJob: %w", err)
	}
	return p.GetJob(ctx, id)
}

// UpdateJob implements jobsync.Gateway. Nil fields keep their stored value.
func (p *Postgres) UpdateJob(ctx context.Context, id string, update model.JobUpdate) (model.Job, error) {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	var skills []string
	if update.Skills != nil {
		skills = *update.Skills
		if skills == nil {
			skills = []string{}
		}
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET
		   title       = COALESCE($2, title),
		   description = COALESCE($3, description),
		   budget      = COALESCE($4, budget),
		   category    = COALESCE($5, category),
		   skills      = COALESCE($6::text[], skills),
		   status      = COALESCE($7, status),
		   user_photo  = COALESCE($8, user_photo)
		 WHERE id = $1`,
		id, update.Title, update.Description, update.Budget, update.Category,
		skills, status, update.UserPhoto,
	)
	if err != nil {
		return model.Job{}, fmt.Errorf("updateJob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Job{}, fmt.Errorf("job %s: %w", id, jobsync.ErrNotFound)
	}
	return p.GetJob(ctx, id)
}

// DeleteJob implements jobsync.Gateway. Comments, replies, likes and saves
// go with the job. It reports false when no job had that id.
func (p *Postgres) DeleteJob(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleteJob: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddComment implements jobsync.Gateway.
func (p *Postgres) AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error) {
	var c model.Comment
	err := p.pool.QueryRow(ctx,
		`WITH ins AS (
		   INSERT INTO job_comments (job_id, user_id, user_name, user_photo, content)
		   SELECT $1, $2, $3, $4, $5
		   WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $1)
		   RETURNING *
		 )
		 SELECT `+commentColumns+` FROM ins c`,
		jobID, author.ID, author.Name, author.Photo, content,
	).Scan(&c.ID, &c.JobID, &c.UserID, &c.UserName, &c.UserPhoto, &c.Content, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Comment{}, fmt.Errorf("job %s: %w", jobID, jobsync.ErrNotFound)
	}
	if err != nil {
		return model.Comment{}, fmt.Errorf("addComment: %w", err)
	}
	c.Replies = []model.Reply{}
	return c, nil
}

// AddReply implements jobsync.Gateway. The comment must belong to jobID.
func (p *Postgres) AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error) {
	var r model.Reply
	err := p.pool.QueryRow(ctx,
		`WITH ins AS (
		   INSERT INTO comment_replies (comment_id, user_id, user_name, user_photo, content)
		   SELECT $2, $3, $4, $5, $6
		   WHERE EXISTS (SELECT 1 FROM job_comments WHERE id = $2 AND job_id = $1)
		   RETURNING *
		 )
		 SELECT `+replyColumns+` FROM ins r`,
		jobID, commentID, author.ID, author.Name, author.Photo, content,
	).Scan(&r.ID, &r.CommentID, &r.UserID, &r.UserName, &r.UserPhoto, &r.Content, &r.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reply{}, fmt.Errorf("comment %s on job %s: %w", commentID, jobID, jobsync.ErrNotFound)
	}
	if err != nil {
		return model.Reply{}, fmt.Errorf("addReply: %w", err)
	}
	return r, nil
}

// ToggleLike implements jobsync.Gateway: the like is removed when present
// and added otherwise, in one statement.
func (p *Postgres) ToggleLike(ctx context.Context, jobID, userID string) error {
	_, err := p.pool.Exec(ctx,
		`WITH del AS (
		   DELETE FROM job_likes WHERE job_id = $1 AND user_id = $2 RETURNING 1
		 )
		 INSERT INTO job_likes (job_id, user_id)
		 SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM del)`,
		jobID, userID,
	)
	if err != nil {
		return toggleError("toggleLike", jobID, err)
	}
	return nil
}

// ToggleSaved implements jobsync.Gateway.
func (p *Postgres) ToggleSaved(ctx context.Context, userID, jobID string) error {
	_, err := p.pool.Exec(ctx,
		`WITH del AS (
		   DELETE FROM saved_jobs WHERE user_id = $1 AND job_id = $2 RETURNING 1
		 )
		 INSERT INTO saved_jobs (user_id, job_id)
		 SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM del)`,
		userID, jobID,
	)
	if err != nil {
		return toggleError("toggleSaved", jobID, err)
	}
	return nil
}

// ListSavedJobs implements jobsync.Gateway. Jobs come most recently saved
// first.
func (p *Postgres) ListSavedJobs(ctx context.Context, userID string) ([]model.Job, error) {
	jobs, err := p.queryJobs(ctx,
		`SELECT `+jobColumns+`
		 FROM saved_jobs s JOIN jobs j ON j.id = s.job_id
		 WHERE s.user_id = $1
		 ORDER BY s.created_at DESC, j.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listSavedJobs: %w", err)
	}
	return jobs, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// queryJobs runs a query selecting jobColumns and attaches each job's
// comment thread.
func (p *Postgres) queryJobs(ctx context.Context, sql string, args ...any) ([]model.Job, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		var (
			j      model.Job
			status string
		)
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Description, &j.Budget, &j.Category, &j.Skills,
			&j.UserID, &j.UserName, &j.UserPhoto, &status,
			&j.Timestamp, &j.CreatedAt, &j.UpdatedAt, &j.Likes,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		j.Status = model.Status(status)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(jobs) == 0 {
		return jobs, nil
	}

	if err := p.attachThreads(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// attachThreads loads the comments and replies of jobs in two queries.
func (p *Postgres) attachThreads(ctx context.Context, jobs []model.Job) error {
	ids := make([]string, len(jobs))
	byJob := make(map[string]int, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].ID
		byJob[jobs[i].ID] = i
		jobs[i].Comments = []model.Comment{}
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM job_comments c
		 WHERE c.job_id = ANY($1)
		 ORDER BY c.created_at, c.id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("comments query: %w", err)
	}
	type pos struct{ job, comment int }
	byComment := make(map[string]pos)
	commentIDs := make([]string, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.JobID, &c.UserID, &c.UserName, &c.UserPhoto, &c.Content, &c.Timestamp); err != nil {
			rows.Close()
			return fmt.Errorf("comments scan: %w", err)
		}
		c.Replies = []model.Reply{}
		ji := byJob[c.JobID]
		jobs[ji].Comments = append(jobs[ji].Comments, c)
		byComment[c.ID] = pos{job: ji, comment: len(jobs[ji].Comments) - 1}
		commentIDs = append(commentIDs, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("comments rows: %w", err)
	}
	if len(commentIDs) == 0 {
		return nil
	}

	rows, err = p.pool.Query(ctx,
		`SELECT `+replyColumns+` FROM comment_replies r
		 WHERE r.comment_id = ANY($1)
		 ORDER BY r.created_at, r.id`,
		commentIDs,
	)
	if err != nil {
		return fmt.Errorf("replies query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.Reply
		if err := rows.Scan(&r.ID, &r.CommentID, &r.UserID, &r.UserName, &r.UserPhoto, &r.Content, &r.Timestamp); err != nil {
			return fmt.Errorf("replies scan: %w", err)
		}
		at := byComment[r.CommentID]
		c := &jobs[at.job].Comments[at.comment]
		c.Replies = append(c.Replies, r)
	}
	return rows.Err()
}

// toggleError maps a foreign key violation (the job is gone) to not-found.
func toggleError(op, jobID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%s job %s: %w", op, jobID, jobsync.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
