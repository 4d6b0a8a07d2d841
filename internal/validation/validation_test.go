package validation

import (
	"strings"
	"testing"

	"snapshare/internal/models"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestStruct_Register(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		req     RegisterRequest
		wantMsg string
	}{
		{"Valid", RegisterRequest{Username: "alice_01", Email: "a@example.com", Password: "secret"}, ""},
		{"Missing Username", RegisterRequest{Email: "a@example.com", Password: "secret"}, "Username is required"},
		{"Bad Email", RegisterRequest{Username: "alice", Email: "nope", Password: "secret"}, "Email must be a valid email address"},
		{"Short Password", RegisterRequest{Username: "alice", Email: "a@example.com", Password: "12345"}, "Password must be at least 6 characters"},
		{"Illegal Username", RegisterRequest{Username: "al ice", Email: "a@example.com", Password: "secret"}, "Username must be 3-30 characters of letters, numbers, dots or underscores"},
		{"Username Ends With Dot", RegisterRequest{Username: "alice.", Email: "a@example.com", Password: "secret"}, "Username must be 3-30 characters of letters, numbers, dots or underscores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, models.IsCode(err, models.CodeValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestStruct_ProfileEdit(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Struct(ProfileEditRequest{}))
	assert.NoError(t, Struct(ProfileEditRequest{Bio: ptr("hi"), Gender: ptr("female")}))
	assert.NoError(t, Struct(ProfileEditRequest{Gender: ptr("")}))

	err := Struct(ProfileEditRequest{Bio: ptr(strings.Repeat("x", 151))})
	assert.EqualError(t, err, "Bio must be at most 150 characters")

	err = Struct(ProfileEditRequest{Gender: ptr("other")})
	assert.EqualError(t, err, "Gender must be one of: male, female")
}

func TestStruct_Comment(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Struct(CommentRequest{Text: "nice!"}))
	assert.EqualError(t, Struct(CommentRequest{}), "Text is required")
}
