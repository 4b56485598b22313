package patchset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/open-edge-platform/otapatch/internal/apperr"
	sigsyaml "sigs.k8s.io/yaml"
)

//go:embed schema/patchset.schema.json
var schemaJSON []byte

const schemaID = "https://otapatch/schema/patchset.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaID, strings.NewReader(string(schemaJSON))); err != nil {
			compileErr = fmt.Errorf("patchset: add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaID)
	})
	return compiled, compileErr
}

// Manifest is the decoded, schema-validated contents of a manifest
// document: the locators/digest/size Apply needs plus the PatchSet it
// triages against.
type Manifest struct {
	Source       string
	Target       string
	TargetDigest string
	TargetSize   int64
	PatchSet     *PatchSet
}

type manifestDoc struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	TargetDigest string `json:"targetDigest"`
	TargetSize   int64  `json:"targetSize"`
	PatchSet     struct {
		SourceDigests []string `json:"sourceDigests"`
		PatchFiles    []string `json:"patchFiles"`
	} `json:"patchSet"`
}

// LoadManifest reads a YAML or JSON manifest (detected by file
// extension), validates it against the embedded patch-set schema, and
// resolves its patchFiles entries (relative to the manifest's own
// directory) into loaded Patch values. Schema validation happens before
// any patch file is opened, so a malformed manifest never touches disk
// beyond reading itself.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patchset: read manifest %s: %w: %w", path, apperr.ErrIO, err)
	}

	jsonBytes := raw
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		jsonBytes, err = sigsyaml.YAMLToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("patchset: convert manifest %s from YAML: %w: %w", path, apperr.ErrMalformedLocator, err)
		}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("patchset: compile manifest schema: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(jsonBytes, &generic); err != nil {
		return nil, fmt.Errorf("patchset: manifest %s is not valid JSON: %w: %w", path, apperr.ErrMalformedLocator, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("patchset: manifest %s failed schema validation: %w: %w", path, apperr.ErrMalformedLocator, err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("patchset: decode manifest %s: %w: %w", path, apperr.ErrMalformedLocator, err)
	}
	if len(doc.PatchSet.SourceDigests) != len(doc.PatchSet.PatchFiles) {
		return nil, fmt.Errorf("patchset: manifest %s: %d sourceDigests but %d patchFiles: %w",
			path, len(doc.PatchSet.SourceDigests), len(doc.PatchSet.PatchFiles), apperr.ErrMalformedLocator)
	}

	dir := filepath.Dir(path)
	set := &PatchSet{SourceDigests: doc.PatchSet.SourceDigests}
	for _, rel := range doc.PatchSet.PatchFiles {
		patchPath := rel
		if !filepath.IsAbs(patchPath) {
			patchPath = filepath.Join(dir, rel)
		}
		data, err := os.ReadFile(patchPath)
		if err != nil {
			return nil, fmt.Errorf("patchset: read patch file %s: %w: %w", patchPath, apperr.ErrIO, err)
		}
		set.Patches = append(set.Patches, NewPatch(data))
	}

	return &Manifest{
		Source:       doc.Source,
		Target:       doc.Target,
		TargetDigest: doc.TargetDigest,
		TargetSize:   doc.TargetSize,
		PatchSet:     set,
	}, nil
}
