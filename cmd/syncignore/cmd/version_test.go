package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/syncignore/internal/xattr"
	"github.com/Aman-CERP/syncignore/pkg/version"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "default",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "syncignore")
				assert.Contains(t, out, version.Version)
				assert.Contains(t, out, "commit")
				assert.Contains(t, out, "attribute: "+xattr.AttrName)
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Version, strings.TrimSpace(out))
			},
		},
		{
			name: "short wins over json",
			args: []string{"version", "--short", "--json"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Version, strings.TrimSpace(out))
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var report versionReport
				require.NoError(t, json.Unmarshal([]byte(out), &report))
				assert.Equal(t, version.GetInfo(), report.BuildInfo)
				assert.Equal(t, xattr.AttrName, report.Attribute)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)

			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}
