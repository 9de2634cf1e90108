// Package behavior defines the telemetry record produced by capture and
// shipped to the ingestion service.
package behavior

import (
	"time"
	"unicode/utf8"
)

// Content limits, in runes.
const (
	ShortContentLimit = 280
	LongContentLimit  = 500
)

// Event is one normalized telemetry record. Events are values: the With*
// helpers return modified copies and never share slices with the receiver.
type Event struct {
	Source          Source    `json:"source"`
	DeviceID        string    `json:"device_id,omitempty"`
	BehaviorType    Type      `json:"behavior_type"`
	Category        Category  `json:"category"`
	Keywords        []string  `json:"keywords"`
	Content         string    `json:"content,omitempty"`
	Sentiment       Sentiment `json:"sentiment,omitempty"`
	PoliticalTilt   Tilt      `json:"political_tilt,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	Author          string    `json:"author,omitempty"`
	VideoID         string    `json:"video_id,omitempty"`
	Channel         string    `json:"channel,omitempty"`
	SessionDuration *int      `json:"session_duration,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// New creates an extension-sourced event stamped at the given capture time.
func New(t Type, c Category, at time.Time) Event {
	return Event{
		Source:       SourceExtension,
		BehaviorType: t,
		Category:     c,
		Keywords:     []string{},
		Timestamp:    at.UTC(),
	}
}

// WithKeywords returns a copy carrying a private copy of keywords.
func (e Event) WithKeywords(keywords []string) Event {
	e.Keywords = append([]string{}, keywords...)
	return e
}

// WithContent returns a copy whose content is text truncated to limit runes.
func (e Event) WithContent(text string, limit int) Event {
	e.Content = Truncate(text, limit)
	return e
}

// WithAnalysis returns a copy carrying classifier output.
func (e Event) WithAnalysis(s Sentiment, t Tilt, confidence float64) Event {
	e.Sentiment = s
	e.PoliticalTilt = t
	e.Confidence = &confidence
	return e
}

// WithDuration returns a copy carrying a session duration in seconds.
func (e Event) WithDuration(seconds int) Event {
	e.SessionDuration = &seconds
	return e
}

func (e Event) WithAuthor(author string) Event {
	e.Author = author
	return e
}

func (e Event) WithVideo(videoID, channel string) Event {
	e.VideoID = videoID
	e.Channel = channel
	return e
}

func (e Event) WithDeviceID(id string) Event {
	e.DeviceID = id
	return e
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	e.Keywords = append([]string{}, e.Keywords...)
	if e.Confidence != nil {
		c := *e.Confidence
		e.Confidence = &c
	}
	if e.SessionDuration != nil {
		d := *e.SessionDuration
		e.SessionDuration = &d
	}
	return e
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
