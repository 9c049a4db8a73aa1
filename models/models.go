package models

import (
	"slices"
	"time"
)

// User is the identity record served by /users/me and /users/{username}.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Bio            *string   `json:"bio,omitempty"`
	Avatar         *string   `json:"avatar,omitempty"`
	Mojo           float64   `json:"mojo"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PostsCount     int64     `json:"posts_count"`
	CreatedAt      Timestamp `json:"created_at"`
}

// Clone returns a deep copy so readers never share pointers with the owner.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Bio = cloneString(u.Bio)
	c.Avatar = cloneString(u.Avatar)
	return &c
}

// UserPatch carries the fields a profile edit may change locally. Bio is
// applied when BioSet is true, so a nil Bio clears it.
type UserPatch struct {
	Username *string
	Bio      *string
	BioSet   bool
	Avatar   *string
}

// PatchFromUser patches every editable field with the backend's copy of u.
func PatchFromUser(u *User) UserPatch {
	return UserPatch{
		Username: &u.Username,
		Bio:      u.Bio,
		BioSet:   true,
		Avatar:   u.Avatar,
	}
}

func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Bio != nil || p.BioSet {
		u.Bio = cloneString(p.Bio)
	}
	if p.Avatar != nil {
		u.Avatar = cloneString(p.Avatar)
	}
}

type Post struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Hashtags       []string  `json:"hashtags"`
	Image          *string   `json:"image,omitempty"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Visits         int64     `json:"visits"`
	AverageRating  float64   `json:"average_rating"`
	RatingsCount   int64     `json:"ratings_count"`
	CommentsCount  int64     `json:"comments_count"`
	Archived       bool      `json:"archived"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
}

func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Hashtags = slices.Clone(p.Hashtags)
	c.Image = cloneString(p.Image)
	return &c
}

type Comment struct {
	ID             string     `json:"id"`
	PostID         string     `json:"post_id"`
	AuthorID       string     `json:"author_id"`
	AuthorUsername string     `json:"author_username"`
	Content        string     `json:"content"`
	CreatedAt      Timestamp  `json:"created_at"`
	UpdatedAt      *Timestamp `json:"updated_at,omitempty"`
}

// Edited reports whether the comment was changed after it was written.
// An updated_at equal to created_at does not count.
func (c Comment) Edited() bool {
	return c.UpdatedAt != nil && c.UpdatedAt.After(c.CreatedAt.Time)
}

type Rating struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	CreatedAt Timestamp `json:"created_at"`
}

type Author struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio"`
	Avatar         *string   `json:"avatar,omitempty"`
	Mojo           float64   `json:"mojo"`
	PostsCount     int64     `json:"posts_count"`
	FollowersCount int64     `json:"followers_count"`
	AverageRating  float64   `json:"average_rating"`
	TotalVisits    int64     `json:"total_visits"`
	RatingsCount   int64     `json:"ratings_count"`
	CreatedAt      Timestamp `json:"created_at"`
}

type AuthorsPage struct {
	Authors []Author `json:"authors"`
	Total   int64    `json:"total"`
	Skip    int64    `json:"skip"`
	Limit   int64    `json:"limit"`
}

type RanksPage struct {
	Posts []Post `json:"posts"`
}

type HashtagCount struct {
	Hashtag string `json:"hashtag"`
	Count   int64  `json:"count"`
}

// Token is the credential grant returned by /auth/login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Message struct {
	Message string `json:"message"`
}

type ArchiveResult struct {
	Message  string `json:"message"`
	Archived bool   `json:"archived"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      *string `json:"bio,omitempty"`
}

type RatingRequest struct {
	PostID string `json:"post_id"`
	Rating int    `json:"rating"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

// Upload is an in-memory file attached to a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PostInput is the editor payload for create and update.
type PostInput struct {
	Title    string
	Content  string
	Hashtags []string
	Image    *Upload
}

// ProfileUpdate holds only the profile fields that changed.
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   *Upload
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.Bio == nil && u.Avatar == nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
