package dispatch

import "fmt"

// CatalogEntry is static reference data for one permitted email type.
type CatalogEntry struct {
	Type        EmailType `json:"type"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
}

// Catalog gates which email types may be sent or scheduled. It is an
// explicit value handed to the orchestrator at construction rather than a
// per-call lookup, so tests can swap it and there is no hidden process-wide
// state.
type Catalog struct {
	entries map[EmailType]CatalogEntry
}

// NewCatalog builds a catalog from the given entries.
func NewCatalog(entries ...CatalogEntry) Catalog {
	m := make(map[EmailType]CatalogEntry, len(entries))
	for _, e := range entries {
		m[e.Type] = e
	}
	return Catalog{entries: m}
}

// DefaultCatalog returns the built-in catalog with all known email types
// enabled. Production loads the catalog from the email_catalog table
// instead; this is the development and test fallback.
func DefaultCatalog() Catalog {
	return NewCatalog(
		CatalogEntry{Type: TypeWelcome, Description: "Welcome email sent after signup", Enabled: true},
		CatalogEntry{Type: TypeCommunityGrowthDay135, Description: "Community growth update 135 days after signup", Enabled: true},
		CatalogEntry{Type: TypeReengagement, Description: "Nudge for members inactive beyond the threshold", Enabled: true},
		CatalogEntry{Type: TypeMeetingReminder, Description: "Reminder ahead of a scheduled meeting", Enabled: true},
	)
}

// Entry returns the catalog entry for the given type.
func (c Catalog) Entry(t EmailType) (CatalogEntry, bool) {
	e, ok := c.entries[t]
	return e, ok
}

// Allow returns nil when the type exists in the catalog and is enabled.
func (c Catalog) Allow(t EmailType) error {
	e, ok := c.entries[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTypeNotInCatalog, t)
	}
	if !e.Enabled {
		return fmt.Errorf("%w: %q", ErrTypeDisabled, t)
	}
	return nil
}
