package mpris

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/wake/internal/playback"
)

// parseTrack converts an MPRIS Metadata map into a Track. Returns nil when
// the map carries no usable identity (no title and no trackid).
func parseTrack(md map[string]dbus.Variant) *playback.Track {
	t := playback.Track{
		Identifier: asTrackID(md["mpris:trackid"]),
		Title:      asString(md["xesam:title"]),
		Album:      asString(md["xesam:album"]),
		Artist:     firstString(md["xesam:artist"]),
		Duration:   asDuration(md["mpris:length"]),
	}
	if t.Title == "" && t.Identifier == "" {
		return nil
	}
	return &t
}

// parseStatus maps the MPRIS PlaybackStatus string to a playback state.
func parseStatus(s string) playback.State {
	switch s {
	case "Playing":
		return playback.StatePlaying
	case "Paused":
		return playback.StatePaused
	default:
		return playback.StateStopped
	}
}

func asString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// asTrackID reads mpris:trackid, which players send as either an object path
// or a plain string. The NoTrack sentinel path means no identity.
func asTrackID(v dbus.Variant) string {
	var id string
	switch val := v.Value().(type) {
	case dbus.ObjectPath:
		id = string(val)
	case string:
		id = val
	}
	if strings.HasSuffix(id, "/org/mpris/MediaPlayer2/TrackList/NoTrack") {
		return ""
	}
	return id
}

// firstString reads xesam:artist, sent as a string array by most players and
// as a bare string by a few.
func firstString(v dbus.Variant) string {
	switch val := v.Value().(type) {
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case string:
		return val
	}
	return ""
}

// asDuration reads mpris:length, in microseconds. Players disagree on the
// integer width.
func asDuration(v dbus.Variant) time.Duration {
	var us int64
	switch val := v.Value().(type) {
	case int64:
		us = val
	case uint64:
		us = int64(val)
	case int32:
		us = int64(val)
	case uint32:
		us = int64(val)
	case int:
		us = int64(val)
	case float64:
		us = int64(val)
	}
	if us <= 0 {
		return 0
	}
	return time.Duration(us) * time.Microsecond
}
