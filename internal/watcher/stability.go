package watcher

import (
	"os"
	"time"
)

// defaultStabilitySamples bounds how many length samples a candidate file
// gets before the Watcher gives up and skips it (§4.3 Stability debounce).
const defaultStabilitySamples = 10

// defaultStabilityInterval is the wait between consecutive samples.
const defaultStabilityInterval = 500 * time.Millisecond

// awaitStable samples path's length up to maxSamples times, waiting
// interval between samples, and reports true once two consecutive samples
// agree on a non-negative length and the file can be opened for shared
// read. It reports false if the file never stabilises or disappears.
func awaitStable(path string, maxSamples int, interval time.Duration) bool {
	if maxSamples <= 0 {
		maxSamples = defaultStabilitySamples
	}
	if interval <= 0 {
		interval = defaultStabilityInterval
	}

	var lastSize int64 = -1
	for i := 0; i < maxSamples; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		size := info.Size()

		if size == lastSize && size >= 0 && canOpenShared(path) {
			return true
		}
		lastSize = size

		if i < maxSamples-1 {
			time.Sleep(interval)
		}
	}
	return false
}

// canOpenShared reports whether path can currently be opened for reading,
// i.e. no other process holds an exclusive lock that would block a shared
// reader.
func canOpenShared(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}
