package domain

type DeviceType string

const (
	DeviceMicrophone  DeviceType = "microphone"
	DeviceSystemAudio DeviceType = "systemAudio"
	DeviceCamera      DeviceType = "camera"
)

// DesktopLoopbackID is the reserved id of the synthetic Windows
// desktop audio descriptor injected by the catalog.
const DesktopLoopbackID DeviceID = "desktop-loopback"

type DeviceDescriptor struct {
	ID        DeviceID
	Name      string
	Type      DeviceType
	IsDefault bool
}

type DeviceList struct {
	Microphones        []DeviceDescriptor
	SystemAudio        []DeviceDescriptor
	Cameras            []DeviceDescriptor
	DefaultMic         DeviceID
	DefaultSystemAudio DeviceID
}
