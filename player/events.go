package player

import (
	"sync"

	"fiveradio/model"

	"github.com/google/uuid"
)

// Event kinds, as reported by Event.Kind.
const (
	KindStationChanged   = "stationChanged"
	KindPlayStateChanged = "playStateChanged"
	KindVolumeChanged    = "volumeChanged"
	KindMuteChanged      = "muteChanged"
	KindError            = "error"
)

// Event is a controller notification. The set of implementations is closed;
// consumers type-switch on StationChanged, PlayStateChanged, VolumeChanged,
// MuteChanged and ErrorEvent.
type Event interface {
	Kind() string
	isEvent()
}

// StationChanged is emitted when a new station becomes current.
type StationChanged struct {
	Station model.Station `json:"station"`
}

// PlayStateChanged is emitted on every state transition.
type PlayStateChanged struct {
	State   State          `json:"state"`
	Playing bool           `json:"isPlaying"`
	Station *model.Station `json:"station,omitempty"`
}

// VolumeChanged carries the stored (clamped) volume.
type VolumeChanged struct {
	Volume float64 `json:"volume"`
}

// MuteChanged carries the new mute flag.
type MuteChanged struct {
	Muted bool `json:"isMuted"`
}

// ErrorEvent reports a soft failure; the controller has already moved to
// StateError when it is delivered.
type ErrorEvent struct {
	Station *model.Station `json:"station,omitempty"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

func (StationChanged) Kind() string   { return KindStationChanged }
func (PlayStateChanged) Kind() string { return KindPlayStateChanged }
func (VolumeChanged) Kind() string    { return KindVolumeChanged }
func (MuteChanged) Kind() string      { return KindMuteChanged }
func (ErrorEvent) Kind() string       { return KindError }

func (StationChanged) isEvent()   {}
func (PlayStateChanged) isEvent() {}
func (VolumeChanged) isEvent()    {}
func (MuteChanged) isEvent()      {}
func (ErrorEvent) isEvent()       {}

// SubscriptionID identifies a registered observer.
type SubscriptionID string

type observer struct {
	id SubscriptionID
	fn func(Event)
}

// observers is an ordered set of callbacks.
type observers struct {
	mu   sync.Mutex
	list []observer
}

func (o *observers) add(fn func(Event)) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	o.mu.Lock()
	o.list = append(o.list, observer{id: id, fn: fn})
	o.mu.Unlock()
	return id
}

func (o *observers) remove(id SubscriptionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, ob := range o.list {
		if ob.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

func (o *observers) clear() {
	o.mu.Lock()
	o.list = nil
	o.mu.Unlock()
}

func (o *observers) snapshot() []observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.list
}
