package utils

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersion  = "unknown"
	develVersion    = "(devel)"
	revisionSetting = "vcs.revision"
	modifiedSetting = "vcs.modified"
	revisionLength  = 12
	dirtySuffix     = "-dirty"
)

// Version may be set at link time with -ldflags "-X github.com/temirov/codestream/internal/utils.Version=v1.2.3".
var Version = ""

// GetApplicationVersion reports the linked version, the module version, or the VCS revision, in that order.
func GetApplicationVersion() string {
	if trimmed := strings.TrimSpace(Version); trimmed != "" {
		return trimmed
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return unknownVersion
	}
	if buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}
	return versionFromSettings(buildInfo.Settings)
}

func versionFromSettings(settings []debug.BuildSetting) string {
	var revision string
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case revisionSetting:
			revision = setting.Value
		case modifiedSetting:
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return unknownVersion
	}
	if len(revision) > revisionLength {
		revision = revision[:revisionLength]
	}
	if modified {
		revision += dirtySuffix
	}
	return revision
}
