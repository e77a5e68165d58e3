package watcher

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

var foldCase = cases.Fold()

// WorkerRoot describes one worker's mapping entry as the Watcher needs it:
// the root directory its outputs are written under.
type WorkerRoot struct {
	OutputDirectory string
}

// classification is the result of applying §4.3's classification rule to a
// single candidate path.
type classification struct {
	targetApp  string
	outputPath string
	skip       bool
	skipReason string
}

// classify applies the Watcher's classification rule (§4.3) to relPath, the
// candidate's path relative to the watch root. day is the engine's pinned
// startup day, inserted into the output path per the output_path_rule.
func classify(relPath, day string, mappings map[string]WorkerRoot, defaultWorker string) classification {
	relPath = filepath.ToSlash(relPath)
	components := strings.Split(relPath, "/")

	if len(components) >= 2 {
		c1 := components[0]
		if root, ok := mappings[c1]; ok {
			sub := components[1 : len(components)-1]
			filename := components[len(components)-1]
			return classification{
				targetApp:  c1,
				outputPath: outputPathFor(root.OutputDirectory, day, sub, filename),
			}
		}
	}

	if len(components) == 1 {
		if defaultWorker == "" {
			return classification{skip: true, skipReason: "no default worker configured for root files"}
		}
		root, ok := mappings[defaultWorker]
		if !ok {
			return classification{skip: true, skipReason: "default worker not present in mappings"}
		}
		return classification{
			targetApp:  defaultWorker,
			outputPath: outputPathFor(root.OutputDirectory, day, nil, components[0]),
		}
	}

	return classification{skip: true, skipReason: "no worker key matched"}
}

// outputPathFor implements §4.3's output_path_rule: the produced output
// path is OUT/<day>/<workerKey>/<relative-subpath-below-c1>/<filename>,
// where OUT is the parent of the worker's configured OutputDirectory and
// workerKey is its base name.
func outputPathFor(outputDirectory, day string, subpath []string, filename string) string {
	base := filepath.Dir(outputDirectory)
	workerKey := filepath.Base(outputDirectory)
	parts := append([]string{base, day, workerKey}, subpath...)
	parts = append(parts, filename)
	return filepath.Join(parts...)
}

// isIgnorable reports whether name should be ignored under
// IgnoreHiddenAndSystemFiles: dotfiles, and "Thumbs.db" compared
// case-insensitively.
func isIgnorable(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return foldCase.String(name) == foldCase.String("Thumbs.db")
}
