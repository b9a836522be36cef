package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "strings",
			input: "street: 1 Main St\ncity: Springfield\n",
			want:  map[string]string{"street": "1 Main St", "city": "Springfield"},
		},
		{
			name:  "scalars kept as written",
			input: "zip: 01234\nage: 42\nagree: yes\n",
			want:  map[string]string{"zip": "01234", "age": "42", "agree": "yes"},
		},
		{
			name:  "empty value",
			input: "middle:\n",
			want:  map[string]string{"middle": ""},
		},
		{
			name:  "empty document",
			input: "",
			want:  map[string]string{},
		},
		{
			name:    "nested value",
			input:   "address:\n  street: 1 Main St\n",
			wantErr: true,
		},
		{
			name:    "not a mapping",
			input:   "- a\n- b\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswers([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadAnswers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Ada\n"), 0o600))

	got, err := LoadAnswers(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Ada"}, got)

	_, err = LoadAnswers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
