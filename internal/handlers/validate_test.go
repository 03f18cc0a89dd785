package handlers

import (
	"strings"
	"testing"

	"postdesk/internal/apperr"
)

func fieldNames(err error) []string {
	var names []string
	if e, ok := err.(*apperr.Error); ok {
		for _, f := range e.Fields {
			names = append(names, f.Field)
		}
	}
	return names
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		name        string
		catName     string
		description string
		want        []string
	}{
		{"valid", "Go", "All about Go", nil},
		{"blank name", "   ", "", []string{"name"}},
		{"long name", strings.Repeat("a", 101), "", []string{"name"}},
		{"long description", "Go", strings.Repeat("d", 501), []string{"description"}},
		{"both", "", strings.Repeat("d", 501), []string{"name", "description"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCategory(tt.catName, tt.description)
			got := fieldNames(err)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("fields = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestValidateComment(t *testing.T) {
	if err := validateComment("Nice post!"); err != nil {
		t.Errorf("valid comment: %v", err)
	}
	if err := validateComment("  \n "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("blank comment: err = %v", err)
	}
	if err := validateComment(strings.Repeat("x", maxCommentLen+1)); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("long comment: err = %v", err)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     []string
	}{
		{"valid", "jane.doe", "correct horse", nil},
		{"short username", "jd", "correct horse", []string{"username"}},
		{"bad characters", "jane doe!", "correct horse", []string{"username"}},
		{"short password", "jane", "short", []string{"password"}},
		{"long password", "jane", strings.Repeat("p", 73), []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldNames(validateRegistration(tt.username, tt.password, ""))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("fields = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckPostLengths(t *testing.T) {
	var fields apperr.FieldList
	long := strings.Repeat("t", maxTitleLen+1)
	ok := "fine"
	checkPostLengths(&fields, &long, &ok)
	checkPostLengths(&fields, nil, nil)
	if len(fields) != 1 || fields[0].Field != "title" {
		t.Errorf("fields = %+v", fields)
	}
}
