package state

// Side is a role tag identifying which device a record refers to. Roles are
// positional: each device calls itself local, so a snapshot that crosses the
// wire must have its side tags flipped before the two views are compared.
type Side int

const (
	// SideUnspecified represents an invalid side value.
	SideUnspecified Side = iota
	// SideLocal refers to the device owning the snapshot.
	SideLocal
	// SideOpponent refers to the peer device.
	SideOpponent
)

// String returns the stable wire name of the side.
func (s Side) String() string {
	switch s {
	case SideLocal:
		return "LOCAL"
	case SideOpponent:
		return "OPPONENT"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSide maps a stable wire name back to a side.
func ParseSide(name string) (Side, bool) {
	switch name {
	case "LOCAL":
		return SideLocal, true
	case "OPPONENT":
		return SideOpponent, true
	case "UNSPECIFIED":
		return SideUnspecified, true
	default:
		return SideUnspecified, false
	}
}

// Flip returns the same role seen from the other device.
func (s Side) Flip() Side {
	switch s {
	case SideLocal:
		return SideOpponent
	case SideOpponent:
		return SideLocal
	default:
		return SideUnspecified
	}
}
