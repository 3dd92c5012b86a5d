package engine

import "sync/atomic"

// Flags are the runtime-toggleable switches steering conversion. They are
// read on every event and may be flipped concurrently by the admin API.
type Flags struct {
	conversion  atomic.Bool
	pepOnly     atomic.Bool
	shrinkVCard atomic.Bool
	legacy      atomic.Bool
}

// FlagState is a plain snapshot of all flags for the admin surface.
type FlagState struct {
	ConversionEnabled     bool `json:"avatarConversionEnabled"`
	PEPOnlyMode           bool `json:"pepOnlyMode"`
	ShrinkVCardImage      bool `json:"shrinkVCardImage"`
	LegacyProtocolEnabled bool `json:"legacyProtocolEnabled"`
}

func NewFlags(state FlagState) *Flags {
	f := &Flags{}
	f.Apply(state)
	return f
}

func (f *Flags) Apply(state FlagState) {
	f.conversion.Store(state.ConversionEnabled)
	f.pepOnly.Store(state.PEPOnlyMode)
	f.shrinkVCard.Store(state.ShrinkVCardImage)
	f.legacy.Store(state.LegacyProtocolEnabled)
}

func (f *Flags) State() FlagState {
	return FlagState{
		ConversionEnabled:     f.conversion.Load(),
		PEPOnlyMode:           f.pepOnly.Load(),
		ShrinkVCardImage:      f.shrinkVCard.Load(),
		LegacyProtocolEnabled: f.legacy.Load(),
	}
}

func (f *Flags) ConversionEnabled() bool { return f.conversion.Load() }
func (f *Flags) PEPOnly() bool           { return f.pepOnly.Load() }
func (f *Flags) ShrinkVCard() bool       { return f.shrinkVCard.Load() }
func (f *Flags) LegacyEnabled() bool     { return f.legacy.Load() }
