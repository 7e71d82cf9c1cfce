package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_emailTemplates(t *testing.T) {
	got, err := fs.Glob(FS, "templates/email/*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"templates/email/_base.gohtml",
		"templates/email/_base.txt",
		"templates/email/session_summary.gohtml",
		"templates/email/session_summary.txt",
	}, got)
}

func TestFS_migrations(t *testing.T) {
	got, err := fs.Glob(FS, "migrations/*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
