package dispatch

import "time"

// Config holds the orchestrator's tuning knobs.
type Config struct {
	BatchLimit          int           `env:"DISPATCH_BATCH_LIMIT" envDefault:"100"`             // BatchLimit caps due rows drained per scheduled-email run.
	InactivityThreshold time.Duration `env:"DISPATCH_INACTIVITY_THRESHOLD" envDefault:"192h"`   // InactivityThreshold is how long a user must be inactive before re-engagement (8 days).
	ReengageWindow      time.Duration `env:"DISPATCH_REENGAGE_WINDOW" envDefault:"720h"`        // ReengageWindow suppresses repeat re-engagement within this span (30 days).
	ReminderOffset      time.Duration `env:"DISPATCH_REMINDER_OFFSET" envDefault:"24h"`         // ReminderOffset is how long before a meeting its reminder fires.
	SendTimeout         time.Duration `env:"DISPATCH_SEND_TIMEOUT" envDefault:"30s"`            // SendTimeout bounds a single delivery attempt.
	BackfillChunkSize   int           `env:"DISPATCH_BACKFILL_CHUNK_SIZE" envDefault:"100"`     // BackfillChunkSize is the batch-insert size for the backfill job.
}

// defaultConfig mirrors the envDefault values for callers that construct the
// orchestrator without going through the environment loader.
func defaultConfig() Config {
	return Config{
		BatchLimit:          100,
		InactivityThreshold: 192 * time.Hour,
		ReengageWindow:      720 * time.Hour,
		ReminderOffset:      24 * time.Hour,
		SendTimeout:         30 * time.Second,
		BackfillChunkSize:   100,
	}
}

// withDefaults fills zero fields from the built-in defaults.
func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.BatchLimit <= 0 {
		c.BatchLimit = def.BatchLimit
	}
	if c.InactivityThreshold <= 0 {
		c.InactivityThreshold = def.InactivityThreshold
	}
	if c.ReengageWindow <= 0 {
		c.ReengageWindow = def.ReengageWindow
	}
	if c.ReminderOffset <= 0 {
		c.ReminderOffset = def.ReminderOffset
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.BackfillChunkSize <= 0 {
		c.BackfillChunkSize = def.BackfillChunkSize
	}
	return c
}
