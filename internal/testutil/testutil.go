// Package testutil provides test helpers for wbundle tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// WriteProject creates a temporary project from slash-separated relative
// paths and their contents, and returns its directory.
func WriteProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	// macOS temp dirs live behind a symlink; bundler paths are resolved.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// ReadFile returns the content of a file under dir, failing the test when
// it cannot be read.
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// WorkerProject returns the files of a minimal application whose two
// modules reference the same worker.
func WorkerProject() map[string]string {
	return map[string]string{
		"src/main.ts": `import { other } from "./other";
export const w = new Worker(new URL("./worker.ts", import.meta.url), { type: "module" });
export { other };
`,
		"src/other.ts": `export const other = new Worker(new URL("./worker.ts", import.meta.url));
`,
		"src/worker.ts": `self.onmessage = (e: MessageEvent) => self.postMessage(e.data);
`,
	}
}
