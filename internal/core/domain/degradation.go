package domain

import "strings"

// CacheDegradationMode enumerates supported behaviors when the principal
// snapshot cache is unavailable.
type CacheDegradationMode string

const (
	// CacheDegradationModeLenient falls back to the user directory on any
	// snapshot-cache failure and tolerates failed cache writes.
	CacheDegradationModeLenient CacheDegradationMode = "lenient"
	// CacheDegradationModeStrict rejects requests whenever the snapshot cache
	// cannot be written after a directory lookup.
	CacheDegradationModeStrict CacheDegradationMode = "strict"
)

// CacheDegradationPolicy centralises how the session authority responds when
// the snapshot cache misbehaves. Revocation checks are not governed by this
// policy: a blacklist lookup that cannot be completed always denies.
type CacheDegradationPolicy struct {
	mode CacheDegradationMode
}

// NewCacheDegradationPolicy constructs a policy with the provided mode,
// defaulting to lenient when unspecified.
func NewCacheDegradationPolicy(mode CacheDegradationMode) CacheDegradationPolicy {
	if mode != CacheDegradationModeStrict {
		mode = CacheDegradationModeLenient
	}
	return CacheDegradationPolicy{mode: mode}
}

// ParseCacheDegradationMode normalises textual input into a supported mode.
func ParseCacheDegradationMode(value string) CacheDegradationMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(CacheDegradationModeStrict):
		return CacheDegradationModeStrict
	default:
		return CacheDegradationModeLenient
	}
}

// Mode returns the underlying policy mode.
func (p CacheDegradationPolicy) Mode() CacheDegradationMode {
	return p.mode
}

// IsStrict indicates whether snapshot-cache write failures reject the request.
func (p CacheDegradationPolicy) IsStrict() bool {
	return p.mode == CacheDegradationModeStrict
}
