package cli

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/pkg/session"
)

func TestListCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		cmd := GetRootCmd()

		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == "list" {
				found = true
				break
			}
		}
		assert.True(t, found, "list command should exist")
	})

	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"list", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "stored chat session")
	})
}

func TestSortSessionsByActivity(t *testing.T) {
	now := time.Now().UTC()

	oldest := session.NewSession()
	oldest.LastActive = now.Add(-2 * time.Hour)
	middle := session.NewSession()
	middle.LastActive = now.Add(-1 * time.Hour)
	newest := session.NewSession()
	newest.LastActive = now

	sessions := []*session.Session{oldest, newest, middle}
	sortSessionsByActivity(sessions)

	assert.Equal(t, newest.ID, sessions[0].ID)
	assert.Equal(t, middle.ID, sessions[1].ID)
	assert.Equal(t, oldest.ID, sessions[2].ID)
}

func TestFormatSessionLine(t *testing.T) {
	sess := session.NewSession()
	sess.Append(session.RoleUser, "hello")
	sess.Append(session.RoleAssistant, "hi")

	line := formatSessionLine(sess)

	assert.Contains(t, line, sess.ID.String())
	assert.Contains(t, line, "created at")
	assert.Contains(t, line, "last active at")
	assert.Contains(t, line, fmt.Sprintf("%d messages", 2))
}
