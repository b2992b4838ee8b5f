// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
)

// Stamped by -ldflags -X. Empty means "not stamped".
var (
	Version   = ""
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

const devVersion = "0.1.0-dev"

// Build describes one treesync binary.
type Build struct {
	Version string
	Commit  string
	Dirty   bool
	Time    string
	Go      string
}

// Current returns the running binary's build. Stamped values win over
// the toolchain's VCS settings; anything still missing reads
// "unknown".
func Current() Build {
	build := Build{
		Version: Version,
		Commit:  GitCommit,
		Dirty:   GitDirty == "true",
		Time:    BuildTime,
		Go:      runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build.fill(info)
	}
	if build.Version == "" {
		build.Version = devVersion
	}
	if build.Commit == "" {
		build.Commit = "unknown"
	}
	if build.Time == "" {
		build.Time = "unknown"
	}
	return build
}

func (b *Build) fill(info *debug.BuildInfo) {
	if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	stamped := GitCommit != ""
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if !stamped {
				b.Commit = shortCommit(setting.Value)
			}
		case "vcs.modified":
			if !stamped {
				b.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if b.Time == "" {
				b.Time = setting.Value
			}
		}
	}
}

func shortCommit(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}

// String returns "version (commit[-dirty], build time)".
func (b Build) String() string {
	commit := b.Commit
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, b.Time)
}

// Print writes the --version output for binary to stdout.
func Print(binary string) { Fprint(os.Stdout, binary) }

// Fprint writes binary's --version output to w: the build on the first
// line, then the toolchain and platform.
func Fprint(w io.Writer, binary string) {
	build := Current()
	fmt.Fprintf(w, "%s %s\n  go: %s\n  platform: %s/%s\n",
		binary, build, build.Go, runtime.GOOS, runtime.GOARCH)
}
