package imaging

import (
	"fmt"
	"strings"
)

// Orientation is the rotation that brings a decoded frame upright.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationPortraitUpsideDown
	// OrientationLandscapeLeft frames are rotated 90° counter-clockwise.
	OrientationLandscapeLeft
	// OrientationLandscapeRight frames are rotated 90° clockwise.
	OrientationLandscapeRight
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait-upside-down"
	case OrientationLandscapeLeft:
		return "landscape-left"
	case OrientationLandscapeRight:
		return "landscape-right"
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait":
		return OrientationPortrait, nil
	case "portrait-upside-down":
		return OrientationPortraitUpsideDown, nil
	case "landscape-left":
		return OrientationLandscapeLeft, nil
	case "landscape-right":
		return OrientationLandscapeRight, nil
	}
	return OrientationPortrait, fmt.Errorf("unknown orientation %q", s)
}

// DeviceOrientation is how the capturing device was held.
type DeviceOrientation int

const (
	DeviceUnknown DeviceOrientation = iota
	DevicePortrait
	DevicePortraitUpsideDown
	DeviceLandscapeLeft
	DeviceLandscapeRight
	DeviceFaceUp
	DeviceFaceDown
)

func (d DeviceOrientation) String() string {
	switch d {
	case DeviceUnknown:
		return "unknown"
	case DevicePortrait:
		return "portrait"
	case DevicePortraitUpsideDown:
		return "portrait-upside-down"
	case DeviceLandscapeLeft:
		return "landscape-left"
	case DeviceLandscapeRight:
		return "landscape-right"
	case DeviceFaceUp:
		return "face-up"
	case DeviceFaceDown:
		return "face-down"
	}
	return fmt.Sprintf("device(%d)", int(d))
}

func ParseDeviceOrientation(s string) (DeviceOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return DeviceUnknown, nil
	case "portrait":
		return DevicePortrait, nil
	case "portrait-upside-down":
		return DevicePortraitUpsideDown, nil
	case "landscape-left":
		return DeviceLandscapeLeft, nil
	case "landscape-right":
		return DeviceLandscapeRight, nil
	case "face-up":
		return DeviceFaceUp, nil
	case "face-down":
		return DeviceFaceDown, nil
	}
	return DeviceUnknown, fmt.Errorf("unknown device orientation %q", s)
}

// VideoOrientationFor maps a device orientation to the video orientation.
// The landscape sides are swapped because the sensor is mounted rotated
// relative to the screen; flat and unknown positions fall back to portrait.
func VideoOrientationFor(d DeviceOrientation) Orientation {
	switch d {
	case DevicePortraitUpsideDown:
		return OrientationPortraitUpsideDown
	case DeviceLandscapeLeft:
		return OrientationLandscapeRight
	case DeviceLandscapeRight:
		return OrientationLandscapeLeft
	}
	return OrientationPortrait
}
