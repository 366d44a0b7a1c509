package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User ID", "userid"},
		{"user_id", "userid"},
		{"USERID", "userid"},
		{"  Phone-Number  ", "phonenumber"},
		{"date_of-birth", "dateofbirth"},
		{"\uFEFFFirst Name", "firstname"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Every accepted spelling of every required column must satisfy header
// validation on its own.
func TestResolveHeadersSynonymEquivalence(t *testing.T) {
	for _, table := range [][]column{studentColumns, instructorColumns} {
		for i, col := range table {
			if !col.required {
				continue
			}
			for _, variant := range col.variants {
				headers := make([]string, 0, len(table))
				for j, other := range table {
					if !other.required {
						continue
					}
					if j == i {
						headers = append(headers, variant)
					} else {
						headers = append(headers, other.variants[0])
					}
				}

				resolved, err := ResolveHeaders(&Sheet{Headers: headers}, table)
				require.NoError(t, err, "variant %q of %s should satisfy validation", variant, col.key)
				require.Equal(t, variant, resolved[col.key])
			}
		}
	}
}

func TestResolveHeadersNamesAllMissingColumns(t *testing.T) {
	headers := []string{"firstname", "lastname", "userid", "schoolyear", "semester",
		"department", "course", "section", "yearlevel", "dateofbirth"}

	_, err := ResolveHeaders(&Sheet{Headers: headers}, studentColumns)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrMissingColumns.Code, appErr.Code)
	require.Contains(t, appErr.Message, "Email Address")
	require.Contains(t, appErr.Message, "Phone Number")
	require.NotContains(t, appErr.Message, "First Name")
}

func TestResolveHeadersOptionalColumnsMayBeAbsent(t *testing.T) {
	headers := make([]string, 0, len(studentColumns))
	for _, col := range studentColumns {
		if col.required {
			headers = append(headers, col.variants[0])
		}
	}

	resolved, err := ResolveHeaders(&Sheet{Headers: headers}, studentColumns)
	require.NoError(t, err)
	require.False(t, resolved.has(keyAddress))
	require.True(t, resolved.has(keyFirstName))
}
