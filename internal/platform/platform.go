// Package platform detects environments where file change notifications
// cannot be trusted.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform is the detected operating environment.
type Platform string

const (
	MacOS   Platform = "macos"
	Linux   Platform = "linux"
	WSL1    Platform = "wsl1"
	WSL2    Platform = "wsl2"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

var (
	detected   Platform
	detectOnce sync.Once
)

// Detect returns the current platform. The result is cached.
func Detect() Platform {
	detectOnce.Do(func() { detected = detect(runtime.GOOS, os.Getenv("WSL_DISTRO_NAME"), readFile("/proc/version")) })
	return detected
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

// detect classifies from GOOS, $WSL_DISTRO_NAME and /proc/version.
func detect(goos, distro, procVersion string) Platform {
	switch goos {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
	default:
		return Unknown
	}

	// WSL2 kernels say "microsoft-standard", WSL1 says "Microsoft"
	switch {
	case strings.Contains(procVersion, "microsoft-standard"):
		return WSL2
	case strings.Contains(procVersion, "Microsoft"):
		return WSL1
	case distro != "":
		if _, err := os.Stat("/run/WSL"); err == nil {
			return WSL2
		}
		return WSL1
	}
	return Linux
}

func (p Platform) String() string {
	switch p {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case WSL1:
		return "WSL1"
	case WSL2:
		return "WSL2"
	case Windows:
		return "Windows"
	}
	return "Unknown"
}

// NotifyUnreliable reports whether fsnotify may miss writes below path, and
// why. WSL1 never delivers inotify events reliably; elsewhere it depends on
// the filesystem holding path.
func NotifyUnreliable(path string) (string, bool) {
	if Detect() == WSL1 {
		return "WSL1 does not deliver inotify events reliably", true
	}
	if runtime.GOOS != "linux" {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return unreliableFS(mountFSType(readFile("/proc/mounts"), abs))
}

// mountFSType returns the filesystem type of the longest mount point
// containing path, given the contents of /proc/mounts.
func mountFSType(mounts, path string) string {
	var point, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !within(path, mp) || len(mp) <= len(point) {
			continue
		}
		point, fsType = mp, fields[2]
	}
	return fsType
}

func within(path, dir string) bool {
	if dir == "/" {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+"/")
}

func unreliableFS(fsType string) (string, bool) {
	switch {
	case fsType == "9p":
		return "history on a 9p mount (Windows filesystem under WSL2)", true
	case fsType == "nfs" || fsType == "nfs4":
		return "history on an NFS mount", true
	case fsType == "cifs" || fsType == "smbfs" || fsType == "smb3":
		return "history on a CIFS/SMB mount", true
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "history on an SSHFS mount", true
	}
	return "", false
}
