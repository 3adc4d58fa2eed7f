package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var errInvalidThing = errors.New("invalid thing")

type thing struct {
	ID    string `json:"id" validate:"required,docid"`
	Label string `json:"label,omitempty" validate:"omitempty,max=3"`
	Other string `json:"-" validate:"omitempty,len=2"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		thing   thing
		wantErr string
	}{
		{"valid", thing{ID: "t1", Label: "abc"}, ""},
		{"opaque id with spaces", thing{ID: "Main Branch"}, ""},
		{"required", thing{}, "invalid thing: id: this field is required"},
		{"blank id", thing{ID: "  "}, "invalid thing: id: must not be blank"},
		{"several fields", thing{ID: "\t", Label: "abcd"}, "invalid thing: id: must not be blank; label: label must be a maximum of 3 characters in length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.thing, errInvalidThing)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, IsValidationError(err))
				assert.True(t, errors.Is(err, errInvalidThing))
			}
		})
	}
}

func TestIsValidationError(t *testing.T) {
	verr := NewValidationError(errInvalidThing, FieldError{Field: "id", Error: "bad"})
	assert.True(t, IsValidationError(verr))
	assert.True(t, IsValidationError(errors.Wrap(verr, "course #0")))
	assert.False(t, IsValidationError(errInvalidThing))
	assert.False(t, IsValidationError(nil))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "", ValidationError{}.Error())
	assert.Equal(t, "invalid thing", ValidationError{Err: errInvalidThing}.Error())
	assert.Equal(t, "invalid thing: a: x; b: y", ValidationError{
		Err:    errInvalidThing,
		Fields: []FieldError{{"a", "x"}, {"b", "y"}},
	}.Error())
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "hello world", CleanString("  Hello World\n", true))
	assert.Equal(t, "Hello World", CleanString("\tHello World "))
}
