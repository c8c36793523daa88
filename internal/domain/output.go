package domain

type OutputKind string

const (
	OutputBuiltinSpeaker OutputKind = "builtin_speaker"
	OutputBluetoothA2DP  OutputKind = "bluetooth_a2dp"
	OutputBluetoothSCO   OutputKind = "bluetooth_sco"
	OutputWiredHeadset   OutputKind = "wired_headset"
	OutputHDMI           OutputKind = "hdmi"
	OutputUnknown        OutputKind = "unknown"
)

type OutputDevice struct {
	ID          string
	Name        string
	Description string
	Kind        OutputKind
}

// DeviceEvent is one hot-plug notification from the routing service.
type DeviceEvent struct {
	Added   []OutputDevice
	Removed []OutputDevice
}

type RoutingMode string

const (
	ModeNormal        RoutingMode = "normal"
	ModeCommunication RoutingMode = "communication"
)

func HasKind(devices []OutputDevice, kind OutputKind) bool {
	for _, d := range devices {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
