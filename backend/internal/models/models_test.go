package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubPrivilegedUpdate(t *testing.T) {
	t.Parallel()

	update := map[string]any{
		"firstName": "Ada",
		"isAdmin":   true,
		"is_admin":  true,
		"city":      "London",
	}
	ScrubPrivilegedUpdate(update)

	assert.NotContains(t, update, "isAdmin")
	assert.NotContains(t, update, "is_admin")
	assert.Equal(t, "Ada", update["firstName"])
	assert.Equal(t, "London", update["city"])

	// nil payload must not panic
	ScrubPrivilegedUpdate(nil)
}

func TestDeriveFullName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		first string
		last  string
		want  string
	}{
		{"both", "Ada", "Lovelace", "Ada Lovelace"},
		{"first only", "Ada", "", "Ada"},
		{"last only", "", "Lovelace", "Lovelace"},
		{"neither", "", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u := User{FirstName: tt.first, LastName: tt.last}
			u.DeriveFullName()
			assert.Equal(t, tt.want, u.FullName)
		})
	}
}

func TestRole(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "admin", (&User{IsAdmin: true}).Role())
	assert.Equal(t, "user", (&User{}).Role())
}
