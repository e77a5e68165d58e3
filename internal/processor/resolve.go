package processor

import (
	"fmt"
	"os"
	"runtime"
)

// resolveBinary implements §4.4.e: prefer a native executable at base (or
// base+".exe" on Windows); otherwise fall back to base+".dll" invoked
// through launcherCommand. It returns the command and argument prefix to
// run, or an error listing every path it tried.
func resolveBinary(base, launcherCommand string) (command string, argsPrefix []string, err error) {
	tried := make([]string, 0, 2)

	native := base
	if runtime.GOOS == "windows" {
		native = base + ".exe"
	}
	tried = append(tried, native)
	if fileExists(native) {
		return native, nil, nil
	}
	if runtime.GOOS == "windows" && fileExists(base) {
		return base, nil, nil
	}

	dll := base + ".dll"
	tried = append(tried, dll)
	if fileExists(dll) {
		return launcherCommand, []string{dll}, nil
	}

	return "", nil, fmt.Errorf("worker binary not found, tried: %v", tried)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
