package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchlist/mailroom/pkg/dispatch"
)

func TestCatalog_Allow(t *testing.T) {
	t.Parallel()

	catalog := dispatch.NewCatalog(
		dispatch.CatalogEntry{Type: dispatch.TypeWelcome, Enabled: true},
		dispatch.CatalogEntry{Type: dispatch.TypeReengagement, Enabled: false},
	)

	assert.NoError(t, catalog.Allow(dispatch.TypeWelcome))
	assert.ErrorIs(t, catalog.Allow(dispatch.TypeReengagement), dispatch.ErrTypeDisabled)
	assert.ErrorIs(t, catalog.Allow(dispatch.TypeMeetingReminder), dispatch.ErrTypeNotInCatalog)
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	catalog := dispatch.DefaultCatalog()
	for _, typ := range []dispatch.EmailType{
		dispatch.TypeWelcome,
		dispatch.TypeCommunityGrowthDay135,
		dispatch.TypeReengagement,
		dispatch.TypeMeetingReminder,
	} {
		entry, ok := catalog.Entry(typ)
		require.True(t, ok, "type %s must be present", typ)
		assert.True(t, entry.Enabled)
		assert.NotEmpty(t, entry.Description)
	}
}

func TestEmailType_OneTime(t *testing.T) {
	t.Parallel()

	assert.True(t, dispatch.TypeWelcome.OneTime())
	assert.True(t, dispatch.TypeCommunityGrowthDay135.OneTime())
	assert.False(t, dispatch.TypeReengagement.OneTime())
	assert.False(t, dispatch.TypeMeetingReminder.OneTime())
}
