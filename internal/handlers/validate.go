package handlers

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"postdesk/internal/apperr"
)

// Validation limits for API inputs.
const (
	maxTitleLen        = 300
	maxBodyLen         = 100_000
	maxCategoryNameLen = 100
	maxDescriptionLen  = 500
	maxCommentLen      = 5_000
	maxFullNameLen     = 200
	minPasswordLen     = 8
	maxPasswordLen     = 72 // bcrypt ignores anything longer
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// checkPostLengths rejects oversized post fields. Presence is checked by
// the post service.
func checkPostLengths(fields *apperr.FieldList, title, content *string) {
	if title != nil && utf8.RuneCountInString(*title) > maxTitleLen {
		fields.Add("title", "Title is too long (max 300 characters).")
	}
	if content != nil && utf8.RuneCountInString(*content) > maxBodyLen {
		fields.Add("content", "Content is too long (max 100,000 characters).")
	}
}

// validateCategory checks category form inputs.
func validateCategory(name, description string) error {
	var fields apperr.FieldList
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		fields.Add("name", "Category name is required.")
	case utf8.RuneCountInString(name) > maxCategoryNameLen:
		fields.Add("name", "Category name is too long (max 100 characters).")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		fields.Add("description", "Description is too long (max 500 characters).")
	}
	return fields.Err()
}

// validateComment checks a comment body.
func validateComment(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return apperr.InvalidArgument("body", "Comment is required.")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return apperr.InvalidArgument("body", "Comment is too long (max 5,000 characters).")
	}
	return nil
}

// validateRegistration checks account sign-up inputs.
func validateRegistration(username, password, fullName string) error {
	var fields apperr.FieldList
	if !usernamePattern.MatchString(username) {
		fields.Add("username", "Username must be 3-50 letters, digits, dots, dashes or underscores.")
	}
	switch n := len(password); {
	case n < minPasswordLen:
		fields.Add("password", "Password must be at least 8 characters.")
	case n > maxPasswordLen:
		fields.Add("password", "Password is too long (max 72 bytes).")
	}
	if utf8.RuneCountInString(fullName) > maxFullNameLen {
		fields.Add("fullName", "Full name is too long (max 200 characters).")
	}
	return fields.Err()
}
