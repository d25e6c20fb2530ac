package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchlist/mailroom/pkg/email/templates"
)

func TestRender(t *testing.T) {
	t.Parallel()

	t.Run("welcome with first name", func(t *testing.T) {
		t.Parallel()

		content, err := templates.Render("welcome", map[string]string{"first_name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, "Welcome to Porchlist, Ada!", content.Subject)
		assert.Contains(t, content.HTML, "Welcome, Ada!")
		assert.Contains(t, content.Text, "Welcome, Ada!")
	})

	t.Run("welcome without first name", func(t *testing.T) {
		t.Parallel()

		content, err := templates.Render("welcome", nil)
		require.NoError(t, err)
		assert.Equal(t, "Welcome to Porchlist!", content.Subject)
	})

	t.Run("meeting reminder interpolates meeting fields", func(t *testing.T) {
		t.Parallel()

		content, err := templates.Render("meeting_reminder", map[string]string{
			"first_name":   "Ada",
			"meeting_id":   "b2f9c8f0-0000-0000-0000-000000000000",
			"meeting_time": "2026-09-15 18:00",
		})
		require.NoError(t, err)
		assert.Contains(t, content.Subject, "2026-09-15 18:00")
		assert.Contains(t, content.HTML, "meetings/b2f9c8f0-0000-0000-0000-000000000000")
		assert.Contains(t, content.Text, "2026-09-15 18:00")
	})

	t.Run("html escapes payload values", func(t *testing.T) {
		t.Parallel()

		content, err := templates.Render("welcome", map[string]string{
			"first_name": `<script>alert("x")</script>`,
		})
		require.NoError(t, err)
		assert.NotContains(t, content.HTML, "<script>")
	})

	t.Run("unknown type fails", func(t *testing.T) {
		t.Parallel()

		_, err := templates.Render("unknown_type", nil)
		assert.ErrorIs(t, err, templates.ErrUnknownTemplate)
	})
}

func TestHas(t *testing.T) {
	t.Parallel()

	assert.True(t, templates.Has("welcome"))
	assert.True(t, templates.Has("re_engagement"))
	assert.False(t, templates.Has("nonexistent"))
}
