package model

// Job is a posted work listing as held by the cache.
// Likes has set semantics: a user id appears at most once.
// Comments are append-only and kept in chronological order.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Budget      float64   `json:"budget"`
	Category    string    `json:"category"`
	Skills      []string  `json:"skills"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	UserPhoto   string    `json:"userPhoto,omitempty"`
	Timestamp   int64     `json:"timestamp"` // epoch millis
	Status      Status    `json:"status"`
	Comments    []Comment `json:"comments"`
	Likes       []string  `json:"likes"`
	CreatedAt   string    `json:"createdAt,omitempty"` // ISO-8601, legacy records
	UpdatedAt   string    `json:"updatedAt,omitempty"`
}

// Comment is a first-level discussion entry on a Job.
type Comment struct {
	ID        string  `json:"id"`
	JobID     string  `json:"jobId"`
	UserID    string  `json:"userId"`
	UserName  string  `json:"userName"`
	UserPhoto string  `json:"userPhoto,omitempty"`
	Content   string  `json:"content"`
	Timestamp int64   `json:"timestamp"`
	Replies   []Reply `json:"replies"`
}

// Reply answers a Comment. Replies cannot be replied to.
type Reply struct {
	ID        string `json:"id"`
	CommentID string `json:"commentId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserPhoto string `json:"userPhoto,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Author identifies who writes a comment or reply.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// User is the current-user identity held by the session store.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// Author returns the user as a comment author.
func (u User) Author() Author { return Author{ID: u.ID, Name: u.Name, Photo: u.Photo} }

// JobDraft is the payload of a create request. Id, timestamp, likes and
// comments are assigned by the remote store.
type JobDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Budget      float64  `json:"budget"`
	Category    string   `json:"category"`
	Skills      []string `json:"skills"`
	UserID      string   `json:"userId"`
	UserName    string   `json:"userName"`
	UserPhoto   string   `json:"userPhoto,omitempty"`
	Status      Status   `json:"status,omitempty"`
}

// JobUpdate is a partial update; nil fields are left untouched.
type JobUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Budget      *float64  `json:"budget,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Skills      *[]string `json:"skills,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	UserPhoto   *string   `json:"userPhoto,omitempty"`
}

// Apply copies the non-nil fields of u onto j.
func (u JobUpdate) Apply(j *Job) {
	if u.Title != nil {
		j.Title = *u.Title
	}
	if u.Description != nil {
		j.Description = *u.Description
	}
	if u.Budget != nil {
		j.Budget = *u.Budget
	}
	if u.Category != nil {
		j.Category = *u.Category
	}
	if u.Skills != nil {
		j.Skills = cloneStrings(*u.Skills)
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.UserPhoto != nil {
		j.UserPhoto = *u.UserPhoto
	}
}

// HasLike reports whether userID is in the job's likes set.
func (j Job) HasLike(userID string) bool {
	for _, id := range j.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// CommentIndex returns the position of commentID in the job's comments, or -1.
func (j Job) CommentIndex(commentID string) int {
	for i := range j.Comments {
		if j.Comments[i].ID == commentID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers never share slices with the cache.
func (j Job) Clone() Job {
	out := j
	out.Skills = cloneStrings(j.Skills)
	out.Likes = cloneStrings(j.Likes)
	if j.Comments != nil {
		out.Comments = make([]Comment, len(j.Comments))
		for i, c := range j.Comments {
			out.Comments[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the comment and its replies.
func (c Comment) Clone() Comment {
	out := c
	if c.Replies != nil {
		out.Replies = make([]Reply, len(c.Replies))
		copy(out.Replies, c.Replies)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
