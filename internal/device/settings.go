package device

import (
	"strings"
	"time"
)

// Settings is the per-type settings variant of a device.
type Settings interface {
	Kind() Type
	IsOn() bool
}

// LightSettings holds the controls of a light.
type LightSettings struct {
	Power      bool   `json:"power"`
	Brightness int    `json:"brightness"`
	Color      string `json:"color"`
}

// Kind implements Settings.
func (LightSettings) Kind() Type { return TypeLight }

// IsOn implements Settings.
func (s LightSettings) IsOn() bool { return s.Power }

// FanSettings holds the controls of a fan.
type FanSettings struct {
	Power bool `json:"power"`
	Speed int  `json:"speed"`
}

// Kind implements Settings.
func (FanSettings) Kind() Type { return TypeFan }

// IsOn implements Settings.
func (s FanSettings) IsOn() bool { return s.Power }

const (
	defaultLevel = 50
	// DefaultLightColor is the "Neutral" colour temperature.
	DefaultLightColor = "#FFFACD"
)

// DefaultSettings returns the settings a freshly dropped device starts with.
func DefaultSettings(t Type) Settings {
	switch t {
	case TypeLight:
		return LightSettings{Power: false, Brightness: defaultLevel, Color: DefaultLightColor}
	case TypeFan:
		return FanSettings{Power: false, Speed: defaultLevel}
	default:
		return nil
	}
}

// ClampPercent bounds a slider value to [0, 100].
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// TogglePower flips the power switch of any settings variant.
func TogglePower(s Settings) Settings {
	switch v := s.(type) {
	case LightSettings:
		v.Power = !v.Power
		return v
	case FanSettings:
		v.Power = !v.Power
		return v
	default:
		return s
	}
}

// AdjustLevel moves the primary slider (brightness or speed) by delta.
// Switched-off devices keep their level.
func AdjustLevel(s Settings, delta int) Settings {
	switch v := s.(type) {
	case LightSettings:
		if v.Power {
			v.Brightness = ClampPercent(v.Brightness + delta)
		}
		return v
	case FanSettings:
		if v.Power {
			v.Speed = ClampPercent(v.Speed + delta)
		}
		return v
	default:
		return s
	}
}

// Level returns the primary slider value of s.
func Level(s Settings) int {
	switch v := s.(type) {
	case LightSettings:
		return v.Brightness
	case FanSettings:
		return v.Speed
	default:
		return 0
	}
}

// ColorTemp is one entry of the light colour palette.
type ColorTemp struct {
	Name  string
	Value string
}

// ColorTemps is the palette offered for lights.
var ColorTemps = []ColorTemp{
	{Name: "Warm", Value: "#FFB84D"},
	{Name: "Neutral", Value: DefaultLightColor},
	{Name: "Cool", Value: "#E0F7FF"},
	{Name: "Pink", Value: "#FFB6C1"},
}

// ColorTempName returns the palette name for value, or value itself.
func ColorTempName(value string) string {
	for _, ct := range ColorTemps {
		if strings.EqualFold(ct.Value, value) {
			return ct.Name
		}
	}
	return value
}

// NextColorTemp cycles a light to the next palette colour. Unknown colours
// restart at the beginning of the palette; switched-off lights are unchanged.
func NextColorTemp(s LightSettings) LightSettings {
	if !s.Power {
		return s
	}
	next := 0
	for i, ct := range ColorTemps {
		if strings.EqualFold(ct.Value, s.Color) {
			next = (i + 1) % len(ColorTemps)
			break
		}
	}
	s.Color = ColorTemps[next].Value
	return s
}

// FanSpinPeriod returns the duration of one blade rotation. Faster speeds
// spin quicker; a zero speed does not spin.
func FanSpinPeriod(speed int) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(101-speed) * time.Second / 20
}
