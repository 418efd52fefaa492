package annotation

import "math"

// Transport abstracts the playback surface the engine observes and
// drives. The UI layer adapts its media element to this.
type Transport interface {
	CurrentTime() float64
	Duration() float64
	IsPlaying() bool
	Muted() bool
	Seek(t float64)
	Play()
	Pause()
	SetMuted(muted bool)
	ToggleFullscreen()
}

// frameStep approximates one frame at 30fps for fine scrubbing.
const frameStep = 1.0 / 30

// Keypress is a normalized keyboard event.
type Keypress struct {
	Key   string
	Shift bool
}

// Keymap binds the review-screen keyboard contract to a transport:
// space toggles playback, arrows seek 5s (10s with shift), j/l seek
// 10s, comma/period step one frame, m toggles mute, f fullscreen.
type Keymap struct {
	Transport Transport
}

// Handle dispatches one keypress. It reports whether the key was
// consumed so the caller can suppress default browser behavior.
func (k Keymap) Handle(press Keypress) bool {
	t := k.Transport
	switch press.Key {
	case " ", "space":
		if t.IsPlaying() {
			t.Pause()
		} else {
			t.Play()
		}
	case "ArrowLeft":
		k.seekBy(-k.arrowStep(press))
	case "ArrowRight":
		k.seekBy(k.arrowStep(press))
	case "j":
		k.seekBy(-10)
	case "l":
		k.seekBy(10)
	case ",":
		k.seekBy(-frameStep)
	case ".":
		k.seekBy(frameStep)
	case "m":
		t.SetMuted(!t.Muted())
	case "f":
		t.ToggleFullscreen()
	default:
		return false
	}
	return true
}

func (k Keymap) arrowStep(press Keypress) float64 {
	if press.Shift {
		return 10
	}
	return 5
}

// seekBy applies a relative seek clamped to [0, duration].
func (k Keymap) seekBy(delta float64) {
	t := k.Transport
	target := math.Min(t.Duration(), math.Max(0, t.CurrentTime()+delta))
	t.Seek(target)
}
