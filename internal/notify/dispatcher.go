package notify

import (
	"Arcana/internal/model"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxDisplayed bounds the number of simultaneously visible toasts;
	// the oldest is evicted beyond this.
	MaxDisplayed = 5

	// DefaultDisplayWindow is how long a toast stays up before
	// auto-removal.
	DefaultDisplayWindow = 5 * time.Second
)

// AlertSink is the native-notification capability. It degrades to a
// no-op when the host never granted permission.
type AlertSink interface {
	PermissionGranted() bool
	// Alert raises one native notification. Alerts sharing a tag may be
	// collapsed by the platform.
	Alert(tag, text string) error
}

// SoundPlayer is the audio-playback capability.
type SoundPlayer interface {
	Play(source string) error
}

// soundCues maps event categories to their audio cues.
var soundCues = map[string]string{
	model.SoundMessage:  "sounds/message.mp3",
	model.SoundJoin:     "sounds/join.mp3",
	model.SoundLeave:    "sounds/leave.mp3",
	model.SoundApproval: "sounds/approval.mp3",
	model.SoundError:    "sounds/error.mp3",
}

// Dispatcher converts transport events into short-lived, de-duplicated
// toasts plus optional native alerts and sounds. Everything here
// respects the user-controlled mute switches.
type Dispatcher struct {
	display time.Duration
	alerts  AlertSink
	sounds  SoundPlayer
	logger  *zap.Logger

	mu      sync.Mutex
	enabled bool
	soundOn map[string]bool
	active  []model.Notification // newest first
}

// Options configures a Dispatcher. Nil sinks degrade to no-ops.
type Options struct {
	Enabled       bool
	DisplayWindow time.Duration
	Alerts        AlertSink
	Sounds        SoundPlayer
	SoundEnabled  map[string]bool
}

func NewDispatcher(opts Options, logger *zap.Logger) *Dispatcher {
	if opts.DisplayWindow <= 0 {
		opts.DisplayWindow = DefaultDisplayWindow
	}
	soundOn := make(map[string]bool, len(soundCues))
	for category := range soundCues {
		soundOn[category] = true
	}
	for category, on := range opts.SoundEnabled {
		soundOn[category] = on
	}
	return &Dispatcher{
		display: opts.DisplayWindow,
		alerts:  opts.Alerts,
		sounds:  opts.Sounds,
		logger:  logger,
		enabled: opts.Enabled,
		soundOn: soundOn,
	}
}

// Notify raises an ephemeral toast. A complete no-op while
// notifications are globally disabled. Message-kind notifications also
// raise a native alert when the host granted permission.
func (d *Dispatcher) Notify(text, kind string) {
	d.push(text, kind, false)
}

// NotifySticky raises a toast that is never auto-dismissed, used for
// the terminal connection-failure indicator.
func (d *Dispatcher) NotifySticky(text, kind string) {
	d.push(text, kind, true)
}

func (d *Dispatcher) push(text, kind string, sticky bool) {
	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return
	}

	n := model.Notification{
		ID:        uuid.New().String(),
		Message:   text,
		Kind:      kind,
		Sticky:    sticky,
		CreatedAt: time.Now(),
	}
	d.active = append([]model.Notification{n}, d.active...)
	if len(d.active) > MaxDisplayed {
		d.active = d.active[:MaxDisplayed]
	}
	d.mu.Unlock()

	if !sticky {
		id := n.ID
		time.AfterFunc(d.display, func() {
			d.Dismiss(id)
		})
	}

	if kind == model.KindMessage && d.alerts != nil && d.alerts.PermissionGranted() {
		if err := d.alerts.Alert("chat-message", text); err != nil {
			d.logger.Debug("native alert failed", zap.Error(err))
		}
	}
}

// Dismiss removes a toast by id. A no-op for ids already evicted.
func (d *Dispatcher) Dismiss(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, n := range d.active {
		if n.ID == id {
			d.active = append(d.active[:i], d.active[i+1:]...)
			return
		}
	}
}

// Active returns the currently displayed toasts, newest first.
func (d *Dispatcher) Active() []model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]model.Notification, len(d.active))
	copy(out, d.active)
	return out
}

// SetEnabled flips the global notification switch.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
}

// SetSound toggles one sound category.
func (d *Dispatcher) SetSound(category string, on bool) {
	d.mu.Lock()
	d.soundOn[category] = on
	d.mu.Unlock()
}

// PlaySound plays the cue for an event category. Playback never blocks
// notification delivery and failures are swallowed.
func (d *Dispatcher) PlaySound(category string) {
	d.mu.Lock()
	on := d.soundOn[category]
	d.mu.Unlock()

	if !on || d.sounds == nil {
		return
	}
	cue, ok := soundCues[category]
	if !ok {
		return
	}

	go func() {
		if err := d.sounds.Play(cue); err != nil {
			d.logger.Debug("sound playback failed",
				zap.String("category", category), zap.Error(err))
		}
	}()
}
