package watcher

import "testing"

func TestClassifySubdirectoryHappyPath(t *testing.T) {
	mappings := map[string]WorkerRoot{"abc": {OutputDirectory: "/OUT/abc"}}

	got := classify("abc/sub/x.txt", "2026-08-03", mappings, "")
	if got.skip {
		t.Fatalf("classify: unexpected skip (%s)", got.skipReason)
	}
	if got.targetApp != "abc" {
		t.Errorf("targetApp = %q, want %q", got.targetApp, "abc")
	}
	want := "/OUT/2026-08-03/abc/sub/x.txt"
	if got.outputPath != want {
		t.Errorf("outputPath = %q, want %q", got.outputPath, want)
	}
}

func TestClassifyRootFileWithDefault(t *testing.T) {
	mappings := map[string]WorkerRoot{"xyz": {OutputDirectory: "/OUT/xyz"}}

	got := classify("readme.md", "2026-08-03", mappings, "xyz")
	if got.skip {
		t.Fatalf("classify: unexpected skip (%s)", got.skipReason)
	}
	if got.targetApp != "xyz" {
		t.Errorf("targetApp = %q, want %q", got.targetApp, "xyz")
	}
	want := "/OUT/2026-08-03/xyz/readme.md"
	if got.outputPath != want {
		t.Errorf("outputPath = %q, want %q", got.outputPath, want)
	}
}

func TestClassifyRootFileWithoutDefaultSkips(t *testing.T) {
	mappings := map[string]WorkerRoot{"xyz": {OutputDirectory: "/OUT/xyz"}}

	got := classify("readme.md", "2026-08-03", mappings, "")
	if !got.skip {
		t.Fatal("classify: expected skip for root file with no default worker")
	}
}

func TestClassifyUnknownFirstComponentSkips(t *testing.T) {
	mappings := map[string]WorkerRoot{"abc": {OutputDirectory: "/OUT/abc"}}

	got := classify("unknownkey/sub/x.txt", "2026-08-03", mappings, "")
	if !got.skip {
		t.Fatal("classify: expected skip for unknown first path component")
	}
}

func TestIsIgnorable(t *testing.T) {
	cases := map[string]bool{
		".hidden":   true,
		"Thumbs.db": true,
		"thumbs.DB": true,
		"visible.txt": false,
	}
	for name, want := range cases {
		if got := isIgnorable(name); got != want {
			t.Errorf("isIgnorable(%q) = %v, want %v", name, got, want)
		}
	}
}
