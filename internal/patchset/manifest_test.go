package patchset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/otapatch/internal/apperr"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifestYAMLHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "patch.bin", "BSDIFF40-payload")

	yaml := `
source: /data/old.bin
target: /data/new.bin
targetDigest: "000000000000000000000000000000000000000a"
targetSize: 1024
patchSet:
  sourceDigests:
    - "000000000000000000000000000000000000000b"
  patchFiles:
    - patch.bin
`
	path := writeManifest(t, dir, "manifest.yaml", yaml)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Source != "/data/old.bin" || m.Target != "/data/new.bin" {
		t.Fatalf("unexpected locators: %+v", m)
	}
	if m.TargetSize != 1024 {
		t.Fatalf("TargetSize = %d, want 1024", m.TargetSize)
	}
	if len(m.PatchSet.Patches) != 1 || m.PatchSet.Patches[0].Kind != KindBSDIFF {
		t.Fatalf("expected one sniffed bsdiff patch, got %+v", m.PatchSet.Patches)
	}
}

func TestLoadManifestMissingRequiredFieldFails(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "patch.bin", "BSDIFF40-payload")

	json := `{
		"source": "/data/old.bin",
		"target": "-",
		"targetSize": 1024,
		"patchSet": {
			"sourceDigests": ["000000000000000000000000000000000000000b"],
			"patchFiles": ["patch.bin"]
		}
	}`
	path := writeManifest(t, dir, "manifest.json", json)

	_, err := LoadManifest(path)
	if err == nil {
		t.Fatal("expected schema validation error for missing targetDigest")
	}
	if !errors.Is(err, apperr.ErrMalformedLocator) {
		t.Fatalf("expected ErrMalformedLocator, got %v", err)
	}
}

func TestLoadManifestMismatchedPatchSetLengthsFails(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "patch.bin", "BSDIFF40-payload")

	json := `{
		"source": "/data/old.bin",
		"target": "-",
		"targetDigest": "000000000000000000000000000000000000000a",
		"targetSize": 1024,
		"patchSet": {
			"sourceDigests": ["000000000000000000000000000000000000000b", "000000000000000000000000000000000000000c"],
			"patchFiles": ["patch.bin"]
		}
	}`
	path := writeManifest(t, dir, "manifest.json", json)

	_, err := LoadManifest(path)
	if err == nil {
		t.Fatal("expected error for mismatched sourceDigests/patchFiles lengths")
	}
}
