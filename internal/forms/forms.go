// Package forms validates user input before it reaches the network.
//
// Each form has its own field type, so a post error can never be reported
// against a profile field. Lengths are counted in characters.
package forms

import (
	"regexp"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/models"
)

const (
	MinTitleLength    = 20
	MaxTitleLength    = 80
	MinContentLength  = 150
	MaxContentLength  = 10_000
	MinHashtags       = 1
	MaxHashtags       = 3
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	MaxBioLength      = 500
	MaxCommentLength  = 1000
)

var (
	ErrNoChanges = xerrors.Message("no changes to save")

	UsernameRX = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

type PostField string

const (
	PostTitle    PostField = "title"
	PostContent  PostField = "content"
	PostHashtags PostField = "hashtags"
	PostImage    PostField = "image"
)

// ValidatePost checks an editor submission and returns it normalised: title
// and content trimmed, blank hashtags dropped.
func ValidatePost(input models.PostInput) (models.PostInput, error) {
	normalized := models.PostInput{
		Title:    strings.TrimSpace(input.Title),
		Content:  strings.TrimSpace(input.Content),
		Hashtags: CleanHashtags(input.Hashtags),
		Image:    input.Image,
	}

	v := validator.New[PostField]()
	v.Check(validator.LengthBetween(normalized.Title, MinTitleLength, MaxTitleLength), PostTitle,
		"must be between 20 and 80 characters")
	v.Check(validator.LengthBetween(normalized.Content, MinContentLength, MaxContentLength), PostContent,
		"must be between 150 and 10000 characters")
	v.Check(len(normalized.Hashtags) >= MinHashtags && len(normalized.Hashtags) <= MaxHashtags, PostHashtags,
		"must have between 1 and 3 hashtags")
	v.Check(validator.IsUnique(normalized.Hashtags), PostHashtags, "must not contain duplicates")
	if normalized.Image != nil {
		if message := CheckImage(normalized.Image, MaxPostImageBytes); message != "" {
			v.AddError(PostImage, message)
		}
	}

	if err := v.Err(); err != nil {
		return input, err
	}
	return normalized, nil
}

// CleanHashtags trims every tag, strips a leading '#' and drops blank ones.
func CleanHashtags(hashtags []string) []string {
	cleaned := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if validator.NotBlank(tag) {
			cleaned = append(cleaned, tag)
		}
	}
	return cleaned
}

type ProfileField string

const (
	ProfileUsername ProfileField = "username"
	ProfileBio      ProfileField = "bio"
	ProfileAvatar   ProfileField = "avatar"
)

// ProfileForm is the full state of the profile editor.
type ProfileForm struct {
	Username string
	Bio      string
	Avatar   *models.Upload
}

// ValidateProfile validates the editor state against the current identity and
// returns only the fields that changed. Nothing changed yields ErrNoChanges.
func ValidateProfile(current *models.User, form ProfileForm) (models.ProfileUpdate, error) {
	v := validator.New[ProfileField]()
	v.Check(validator.LengthBetween(form.Username, MinUsernameLength, MaxUsernameLength), ProfileUsername,
		"must be between 3 and 30 characters")
	v.Check(validator.IsMatch(form.Username, UsernameRX), ProfileUsername,
		"may only contain letters, numbers and underscores")
	v.Check(validator.MaxLength(form.Bio, MaxBioLength), ProfileBio, "must not be more than 500 characters")
	if form.Avatar != nil {
		if message := CheckImage(form.Avatar, MaxAvatarBytes); message != "" {
			v.AddError(ProfileAvatar, message)
		}
	}
	if err := v.Err(); err != nil {
		return models.ProfileUpdate{}, err
	}

	var update models.ProfileUpdate
	if username := strings.TrimSpace(form.Username); current == nil || username != current.Username {
		update.Username = &username
	}
	currentBio := ""
	if current != nil && current.Bio != nil {
		currentBio = strings.TrimSpace(*current.Bio)
	}
	if bio := strings.TrimSpace(form.Bio); bio != currentBio {
		update.Bio = &bio
	}
	update.Avatar = form.Avatar

	if update.IsEmpty() {
		return update, ErrNoChanges
	}
	return update, nil
}

type RegisterField string

const (
	RegisterUsername        RegisterField = "username"
	RegisterEmail           RegisterField = "email"
	RegisterPassword        RegisterField = "password"
	RegisterConfirmPassword RegisterField = "confirm_password"
	RegisterBio             RegisterField = "bio"
)

type RegisterForm struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Bio             string
}

func ValidateRegister(form RegisterForm) (models.RegisterRequest, error) {
	v := validator.New[RegisterField]()
	v.Check(validator.LengthBetween(form.Username, MinUsernameLength, MaxUsernameLength), RegisterUsername,
		"must be between 3 and 30 characters")
	v.Check(validator.IsMatch(form.Username, UsernameRX), RegisterUsername,
		"may only contain letters, numbers and underscores")
	v.Check(validator.NotBlank(form.Email), RegisterEmail, "must be provided")
	v.Check(strings.Contains(form.Email, "@"), RegisterEmail, "must be a valid email address")
	v.Check(validator.LengthBetween(form.Password, MinPasswordLength, 72), RegisterPassword,
		"must be between 6 and 72 characters")
	v.Check(form.Password == form.ConfirmPassword, RegisterConfirmPassword, "passwords do not match")
	v.Check(validator.MaxLength(form.Bio, MaxBioLength), RegisterBio, "must not be more than 500 characters")
	if err := v.Err(); err != nil {
		return models.RegisterRequest{}, err
	}

	request := models.RegisterRequest{
		Username: form.Username,
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	}
	if bio := strings.TrimSpace(form.Bio); bio != "" {
		request.Bio = &bio
	}
	return request, nil
}

type LoginField string

const (
	LoginEmail    LoginField = "email"
	LoginPassword LoginField = "password"
)

func ValidateLogin(email, password string) error {
	v := validator.New[LoginField]()
	v.Check(validator.NotBlank(email), LoginEmail, "must be provided")
	v.Check(password != "", LoginPassword, "must be provided")
	return v.Err()
}

type CommentField string

const CommentContent CommentField = "content"

// ValidateComment returns the trimmed content, which must hold 1 to 1000 characters.
func ValidateComment(content string) (string, error) {
	v := validator.New[CommentField]()
	v.Check(validator.NotBlank(content), CommentContent, "must not be empty")
	v.Check(validator.MaxLength(content, MaxCommentLength), CommentContent, "must not be more than 1000 characters")
	if err := v.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
