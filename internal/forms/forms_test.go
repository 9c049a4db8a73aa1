package forms

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siahsang/beatpost/internal/validator"
	"github.com/siahsang/beatpost/models"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func validPost() models.PostInput {
	return models.PostInput{
		Title:    strings.Repeat("t", MinTitleLength),
		Content:  strings.Repeat("c", MinContentLength),
		Hashtags: []string{"music"},
	}
}

func TestValidatePostTitleBoundaries(t *testing.T) {
	input := validPost()
	input.Title = strings.Repeat("t", 19)
	_, err := ValidatePost(input)
	require.Error(t, err)

	var fieldErrors validator.FieldErrors[PostField]
	require.ErrorAs(t, err, &fieldErrors)
	assert.Contains(t, fieldErrors, PostTitle)
	assert.NotContains(t, fieldErrors, PostContent)

	input.Title = strings.Repeat("t", 20)
	_, err = ValidatePost(input)
	assert.NoError(t, err)

	input.Title = strings.Repeat("t", 81)
	_, err = ValidatePost(input)
	assert.Error(t, err)
}

func TestValidatePostCountsCharactersNotBytes(t *testing.T) {
	input := validPost()
	input.Title = strings.Repeat("ñ", 20)
	_, err := ValidatePost(input)
	assert.NoError(t, err)
}

func TestValidatePostNormalises(t *testing.T) {
	input := validPost()
	input.Title = "  " + input.Title + "  "
	input.Hashtags = []string{" #jazz ", "", "   ", "beat"}

	normalized, err := ValidatePost(input)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("t", MinTitleLength), normalized.Title)
	assert.Equal(t, []string{"jazz", "beat"}, normalized.Hashtags)
}

func TestValidatePostHashtags(t *testing.T) {
	input := validPost()
	input.Hashtags = []string{" ", ""}
	_, err := ValidatePost(input)
	assert.Error(t, err)

	input.Hashtags = []string{"a", "b", "c", "d"}
	_, err = ValidatePost(input)
	assert.Error(t, err)

	input.Hashtags = []string{"a", "a"}
	_, err = ValidatePost(input)
	assert.Error(t, err)
}

func TestCheckImage(t *testing.T) {
	upload := &models.Upload{Filename: "a.png", Data: pngBytes(t)}
	assert.Empty(t, CheckImage(upload, MaxPostImageBytes))
	assert.Equal(t, "image/png", upload.ContentType)

	text := &models.Upload{Filename: "a.txt", Data: []byte("hello world")}
	assert.Equal(t, "must be an image file", CheckImage(text, MaxPostImageBytes))

	big := &models.Upload{Filename: "big.png", Data: append(pngBytes(t), make([]byte, MaxAvatarBytes)...)}
	assert.Contains(t, CheckImage(big, MaxAvatarBytes), "must not exceed")
}

func TestValidateProfileSendsOnlyChangedFields(t *testing.T) {
	bio := "old bio"
	current := &models.User{Username: "alice", Bio: &bio}

	_, err := ValidateProfile(current, ProfileForm{Username: "alice", Bio: "old bio"})
	assert.ErrorIs(t, err, ErrNoChanges)

	update, err := ValidateProfile(current, ProfileForm{Username: "alice", Bio: "new bio"})
	require.NoError(t, err)
	assert.Nil(t, update.Username)
	require.NotNil(t, update.Bio)
	assert.Equal(t, "new bio", *update.Bio)

	update, err = ValidateProfile(current, ProfileForm{Username: "alice_2", Bio: "old bio"})
	require.NoError(t, err)
	require.NotNil(t, update.Username)
	assert.Equal(t, "alice_2", *update.Username)
	assert.Nil(t, update.Bio)
}

func TestValidateProfileIgnoresSurroundingWhitespace(t *testing.T) {
	bio := "old bio"
	current := &models.User{Username: "alice", Bio: &bio}

	_, err := ValidateProfile(current, ProfileForm{Username: "alice", Bio: "  old bio \n"})
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = ValidateProfile(&models.User{Username: "alice"}, ProfileForm{Username: "alice", Bio: "   "})
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestValidateProfileRejectsBadUsername(t *testing.T) {
	_, err := ValidateProfile(&models.User{Username: "alice"}, ProfileForm{Username: "al ice"})
	var fieldErrors validator.FieldErrors[ProfileField]
	require.ErrorAs(t, err, &fieldErrors)
	assert.Contains(t, fieldErrors, ProfileUsername)

	_, err = ValidateProfile(&models.User{Username: "alice"}, ProfileForm{Username: "al"})
	assert.Error(t, err)
}

func TestValidateRegister(t *testing.T) {
	_, err := ValidateRegister(RegisterForm{
		Username: "bob", Email: "bob@example.com", Password: "secret1", ConfirmPassword: "secret2",
	})
	var fieldErrors validator.FieldErrors[RegisterField]
	require.ErrorAs(t, err, &fieldErrors)
	assert.Equal(t, "passwords do not match", fieldErrors[RegisterConfirmPassword])
	assert.Equal(t, map[string]string{"confirm_password": "passwords do not match"}, fieldErrors.Details())

	request, err := ValidateRegister(RegisterForm{
		Username: "bob", Email: " bob@example.com ", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", request.Email)
	assert.Nil(t, request.Bio)
}

func TestValidateComment(t *testing.T) {
	_, err := ValidateComment("   ")
	assert.Error(t, err)

	_, err = ValidateComment(strings.Repeat("x", MaxCommentLength+1))
	assert.Error(t, err)

	content, err := ValidateComment("  nice beat  ")
	require.NoError(t, err)
	assert.Equal(t, "nice beat", content)
}

func TestValidateLogin(t *testing.T) {
	assert.Error(t, ValidateLogin("", ""))
	assert.NoError(t, ValidateLogin("a@b.c", "pw"))
}
