// Package mpris observes media players on the session bus and turns their
// property changes into playback snapshots.
package mpris

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/wake/internal/playback"
)

const (
	busNamePrefix   = "org.mpris.MediaPlayer2."
	playerPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

// Observer watches MPRIS players over D-Bus. Property change signals give
// track and state transitions; a poll ticker advances the position between
// signals, since players do not emit Position updates.
type Observer struct {
	conn   *dbus.Conn
	logger *slog.Logger
	poll   time.Duration
	snaps  chan playback.Snapshot

	player string // bus name of the tracked player, "" when none
}

// NewObserver connects to the session bus.
func NewObserver(logger *slog.Logger, pollInterval time.Duration) (*Observer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &Observer{
		conn:   conn,
		logger: logger,
		poll:   pollInterval,
		snaps:  make(chan playback.Snapshot, 16),
	}, nil
}

// Snapshots returns the stream of playback observations.
func (o *Observer) Snapshots() <-chan playback.Snapshot {
	return o.snaps
}

// Close disconnects from the bus.
func (o *Observer) Close() error {
	return o.conn.Close()
}

// Run subscribes to player signals and polls positions until ctx ends.
func (o *Observer) Run(ctx context.Context) error {
	if err := o.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(playerPath),
	); err != nil {
		return err
	}
	if err := o.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace("org.mpris.MediaPlayer2"),
	); err != nil {
		return err
	}

	sigs := make(chan *dbus.Signal, 32)
	o.conn.Signal(sigs)
	defer o.conn.RemoveSignal(sigs)

	if name := o.findPlayer(); name != "" {
		o.player = name
		o.emit()
	}

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-sigs:
			if !ok {
				return nil
			}
			o.handleSignal(sig)
		case <-ticker.C:
			if o.player != "" {
				o.emit()
			}
		}
	}
}

func (o *Observer) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 1 {
			return
		}
		iface, _ := sig.Body[0].(string)
		if iface != playerInterface {
			return
		}
		o.player = sig.Sender
		o.emit()

	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return
		}
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		switch {
		case newOwner != "" && o.player == "":
			o.player = newOwner
			o.emit()
		case newOwner == "" && oldOwner == o.player:
			o.player = ""
			o.send(playback.Snapshot{
				State:     playback.StateStopped,
				Timestamp: time.Now(),
			})
		}
	}
}

// findPlayer returns the unique bus name of the first MPRIS player present.
func (o *Observer) findPlayer() string {
	var names []string
	err := o.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		o.logger.Warn("list bus names", "err", err)
		return ""
	}
	for _, n := range names {
		if strings.HasPrefix(n, busNamePrefix) {
			return o.resolveOwner(n)
		}
	}
	return ""
}

// resolveOwner maps a well-known bus name to the unique name of its current
// owner. Signal senders and NameOwnerChanged bodies carry unique names, so
// the tracked player is always stored in that form.
func (o *Observer) resolveOwner(name string) string {
	var owner string
	err := o.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	if err != nil {
		o.logger.Warn("resolve bus name owner", "name", name, "err", err)
		return ""
	}
	return owner
}

// emit queries the tracked player and publishes a snapshot.
func (o *Observer) emit() {
	obj := o.conn.Object(o.player, playerPath)

	statusV, err := obj.GetProperty(playerInterface + ".PlaybackStatus")
	if err != nil {
		o.logger.Debug("read playback status", "player", o.player, "err", err)
		return
	}
	st := parseStatus(asString(statusV))

	var track *playback.Track
	if mdV, err := obj.GetProperty(playerInterface + ".Metadata"); err == nil {
		if md, ok := mdV.Value().(map[string]dbus.Variant); ok {
			track = parseTrack(md)
		}
	}

	var position time.Duration
	if posV, err := obj.GetProperty(playerInterface + ".Position"); err == nil {
		position = asDuration(posV)
	}

	o.send(playback.Snapshot{
		Track:     track,
		State:     st,
		Position:  position,
		Timestamp: time.Now(),
	})
}

// send publishes without blocking; a stalled consumer drops the oldest
// observations rather than the bus loop.
func (o *Observer) send(s playback.Snapshot) {
	select {
	case o.snaps <- s:
	default:
		select {
		case <-o.snaps:
		default:
		}
		select {
		case o.snaps <- s:
		default:
		}
	}
}
