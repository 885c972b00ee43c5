package updater

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// BuildVersion of the running binary, set at build time with
// -ldflags "-X xlsconv/internal/updater.BuildVersion=v1.2.3".
var BuildVersion = "dev"

// Current returns the running version. Development builds report 0.0.0 so
// any published release counts as newer.
func Current() string {
	if _, err := ParseVersion(BuildVersion); err == nil {
		return BuildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if _, err := ParseVersion(info.Main.Version); err == nil {
			return info.Main.Version
		}
	}
	return "0.0.0"
}

// Info describes the running build.
type Info struct {
	Version   string
	Revision  string
	Time      string
	Modified  bool
	GoVersion string
}

// BuildInfo collects version control details embedded by the Go toolchain.
func BuildInfo() Info {
	info := Info{Version: BuildVersion}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.Time = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xlsconv %s", i.Version)
	if i.Revision != "" {
		rev := i.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(&b, " (%s", rev)
		if i.Modified {
			b.WriteString(", dirty")
		}
		b.WriteString(")")
	}
	if i.Time != "" {
		fmt.Fprintf(&b, " built %s", i.Time)
	}
	if i.GoVersion != "" {
		fmt.Fprintf(&b, " %s", i.GoVersion)
	}
	return b.String()
}
