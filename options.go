package tdp

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tiendc/go-deepcopy"
)

// The option types below are structs rather than interfaces, so that
// constructing and applying one never allocates and the With*() functions
// stay on the decoder's construction path without an indirect call.

// DecodeOption configures a Decoder at construction time (spec §6).
type DecodeOption struct{ apply func(*DecodeOptions) }

// DecodeOptions holds the resolved configuration for a Decoder. Every field
// is exported so the struct can be deep-copied by reflection (see clone);
// unlike FieldState it carries no unexported internal bookkeeping.
type DecodeOptions struct {
	Logger           *logrus.Logger
	Observers        []Observer
	StrictSchema     bool
	MaxTicksBuffered int
	SessionID        uuid.UUID
}

// defaultDecodeOptions returns the baseline configuration: a non-strict
// decoder (see WithStrictSchema), tagged with a fresh session id for log
// correlation.
func defaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		Logger:           logrus.StandardLogger(),
		StrictSchema:     false,
		MaxTicksBuffered: 0,
		SessionID:        uuid.New(),
	}
}

// clone returns a deep copy of o that shares no mutable option state with
// it. No Decoder operation calls it; Decoder has no fork. Unlike
// FieldState's tree, DecodeOptions is a flat struct of exported fields,
// which go-deepcopy can reach directly.
func (o DecodeOptions) clone() DecodeOptions {
	var out DecodeOptions
	if err := deepcopy.Copy(&out, &o); err != nil {
		// Copy only fails on unsupported field kinds, which DecodeOptions
		// does not have; fall back to the shallow copy rather than panic.
		return o
	}
	return out
}

// WithLogger sets the logger a Decoder uses for warnings (spec AMBIENT
// STACK "Logging"). Observers are not given this logger.
func WithLogger(logger *logrus.Logger) DecodeOption {
	return DecodeOption{func(o *DecodeOptions) { o.Logger = logger }}
}

// WithObserver registers an Observer to receive callbacks (spec §6).
// Multiple calls accumulate observers rather than replacing the list.
func WithObserver(obs Observer) DecodeOption {
	return DecodeOption{func(o *DecodeOptions) { o.Observers = append(o.Observers, obs) }}
}

// WithStrictSchema makes an instance-baseline update for a class id the
// schema does not define an error instead of a logged warning. It does not
// affect DecodePacketEntities: an unknown class id or unknown field there is
// always an error that aborts the packet, never a warning.
func WithStrictSchema(strict bool) DecodeOption {
	return DecodeOption{func(o *DecodeOptions) { o.StrictSchema = strict }}
}

// WithMaxTicksBuffered records n in DecodeOptions.MaxTicksBuffered. The
// Decoder applies every packet as it arrives, buffers and reorders none, and
// does not read this value.
func WithMaxTicksBuffered(n int) DecodeOption {
	return DecodeOption{func(o *DecodeOptions) { o.MaxTicksBuffered = n }}
}

// WithSessionID overrides the decoder's generated session id, useful when a
// caller wants log lines to correlate with an id from an outer system.
func WithSessionID(id uuid.UUID) DecodeOption {
	return DecodeOption{func(o *DecodeOptions) { o.SessionID = id }}
}
