package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/siahsang/beatpost/internal/filter"
	"github.com/siahsang/beatpost/models"
)

func (c *Client) Register(ctx context.Context, request models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.postJSON(ctx, "/auth/register", request, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.Token, error) {
	var token models.Token
	if err := c.postJSON(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password}, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Profile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/users/"+segment(username), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/users/me", nil, profileForm(update), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ToggleFollow flips the follow relationship with username on the backend.
// The response does not say which way it went.
func (c *Client) ToggleFollow(ctx context.Context, username string) (*models.Message, error) {
	var message models.Message
	if err := c.postJSON(ctx, "/follow/"+segment(username), nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) Posts(ctx context.Context, query filter.PostsQuery) ([]models.Post, error) {
	var posts []models.Post
	if err := c.get(ctx, "/posts", query.Values(), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) Post(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := c.get(ctx, "/posts/"+segment(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, input models.PostInput) (*models.Post, error) {
	body, err := postForm(input)
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, input models.PostInput) (*models.Post, error) {
	body, err := postForm(input)
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := c.do(ctx, http.MethodPut, "/posts/"+segment(id), nil, body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := c.delete(ctx, "/posts/"+segment(id), &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) ToggleArchive(ctx context.Context, id string) (*models.ArchiveResult, error) {
	var result models.ArchiveResult
	if err := c.putJSON(ctx, "/posts/"+segment(id)+"/archive", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RatePost(ctx context.Context, id string, rating int) (*models.Rating, error) {
	var result models.Rating
	if err := c.postJSON(ctx, "/posts/"+segment(id)+"/rate", models.RatingRequest{PostID: id, Rating: rating}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	if err := c.get(ctx, "/posts/"+segment(postID)+"/comments", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	var comment models.Comment
	if err := c.postJSON(ctx, "/posts/"+segment(postID)+"/comments", models.CommentRequest{Content: content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, commentID, content string) (*models.Comment, error) {
	var comment models.Comment
	if err := c.putJSON(ctx, "/comments/"+segment(commentID), models.CommentRequest{Content: content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) (*models.Message, error) {
	var message models.Message
	if err := c.delete(ctx, "/comments/"+segment(commentID), &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) PopularHashtags(ctx context.Context) ([]models.HashtagCount, error) {
	var hashtags []models.HashtagCount
	if err := c.get(ctx, "/hashtags", nil, &hashtags); err != nil {
		return nil, err
	}
	return hashtags, nil
}

func (c *Client) Authors(ctx context.Context, query filter.AuthorsQuery) (*models.AuthorsPage, error) {
	var page models.AuthorsPage
	if err := c.get(ctx, "/authors", query.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Frontpage(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.get(ctx, "/frontpage", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) Ranks(ctx context.Context, hashtag string) (*models.RanksPage, error) {
	var query url.Values
	if hashtag != "" {
		query = url.Values{"hashtag": {hashtag}}
	}
	var page models.RanksPage
	if err := c.get(ctx, "/ranks", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UserPosts(ctx context.Context, userID string, query filter.UserPostsQuery) ([]models.Post, error) {
	var posts []models.Post
	if err := c.get(ctx, "/users/"+segment(userID)+"/posts", query.Values(), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
