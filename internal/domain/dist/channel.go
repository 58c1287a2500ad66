package dist

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ChannelKind tells whether a channel is rebuilt continuously or pinned to releases.
type ChannelKind int

const (
	// Pinned channels (stable, beta, explicit versions) publish a fixed artifact set per release.
	Pinned ChannelKind = iota
	// Rolling channels (nightly) are rebuilt every day.
	Rolling
)

// String implements fmt.Stringer.
func (k ChannelKind) String() string {
	if k == Rolling {
		return "rolling"
	}

	return "pinned"
}

const (
	// DistDir is the directory holding channel manifests and dated artifact directories.
	DistDir = "dist"
	// SidecarExt is appended to a file name to form its checksum sidecar.
	SidecarExt = ".sha256"
	// DateLayout is the layout of release dates and dated directory names.
	DateLayout = "2006-01-02"

	rollingToken = "nightly"
)

var (
	errEmptyChannel   = errors.New("channel name is empty")
	errInvalidChannel = errors.New("invalid channel name")

	// channelPattern accepts named channels and explicit release versions such as 1.75.0.
	channelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*$`)
)

// Channel is a release channel such as stable, beta, nightly or 1.75.0.
type Channel struct {
	name string
}

// ParseChannel validates a channel name.
func ParseChannel(name string) (Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Channel{}, errEmptyChannel
	}

	if !channelPattern.MatchString(name) || strings.Contains(name, "..") {
		return Channel{}, fmt.Errorf("%q: %w", name, errInvalidChannel)
	}

	return Channel{name: name}, nil
}

// MustParseChannel is ParseChannel for compile-time constants.
func MustParseChannel(name string) Channel {
	c, err := ParseChannel(name)
	if err != nil {
		panic(err)
	}

	return c
}

// DefaultChannels returns the channels mirrored when none are configured.
func DefaultChannels() []Channel {
	return []Channel{
		MustParseChannel("stable"),
		MustParseChannel("beta"),
		MustParseChannel("nightly"),
	}
}

// Name returns the channel name.
func (c Channel) Name() string {
	return c.name
}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return c.name
}

// Kind classifies the channel.
func (c Channel) Kind() ChannelKind {
	if c.name == rollingToken {
		return Rolling
	}

	return Pinned
}

// ManifestFileName is channel-rust-<name>.toml.
func (c Channel) ManifestFileName() string {
	return "channel-rust-" + c.name + ".toml"
}

// ManifestPath is the canonical slash-separated path of the channel manifest.
func (c Channel) ManifestPath() string {
	return path.Join(DistDir, c.ManifestFileName())
}

// SnapshotPath is the dated copy of the manifest for the given release date.
func (c Channel) SnapshotPath(date string) string {
	return path.Join(DistDir, date, c.ManifestFileName())
}
