package statemachine

import "time"

// Configuration keys read by the handlers.
const (
	KeyForceReschedule = "actions.FORCE_RESCHEDULE"
	KeyPrepareTarget   = "actions.PREPARE_TARGET"
	KeyMinMoonSep      = "scheduler.constraints.min_moon_sep"
	KeyNumParkAttempts = "mount.num_park_attempts"
	KeyHomeTimeout     = "mount.home_timeout"
	KeyParkTimeout     = "mount.park_timeout"
	KeyBiasNumber      = "calibs.bias.number"
	KeyDarkNumber      = "calibs.dark.number"
	KeyFlatEnabled     = "calibs.flat.enabled"
	KeyWaitDelay       = "wait_delay"
	KeyBarrierTimeout  = "observing.barrier_timeout"
)

// Defaults applied when a key is absent.
const (
	DefaultNumParkAttempts = 3
	DefaultHomeTimeout     = 3 * time.Second
	DefaultParkTimeout     = 3 * time.Second
	DefaultBiasNumber      = 10
	DefaultDarkNumber      = 10
	DefaultWaitDelay       = 120 * time.Second
	DefaultMinMoonSep      = 45.0

	// DefaultPollInterval is the AND barrier poll period.
	DefaultPollInterval = 15 * time.Second
)
