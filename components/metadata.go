package components

// String returns the display name for a LocomotionMode.
func (m LocomotionMode) String() string {
	names := LocomotionModeNames()
	if int(m) < len(names) {
		return names[m]
	}
	return "Unknown"
}

// LocomotionModeNames returns the display names for all locomotion modes.
// The order matches the LocomotionMode constants.
func LocomotionModeNames() []string {
	return []string{"Walking", "Swimming", "WallSwimming", "HostileSurface"}
}

// LocomotionModeCount returns the number of locomotion modes.
func LocomotionModeCount() int {
	return len(LocomotionModeNames())
}

// MarshalText implements encoding.TextMarshaler so modes read well in JSON and CSV.
func (m LocomotionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// String returns the display name for a ProbeTarget.
func (p ProbeTarget) String() string {
	switch p {
	case ProbeForward:
		return "forward"
	case ProbeDown:
		return "down"
	default:
		return "none"
	}
}
