// Package lockfile reads and writes the durable provenance record mapping
// managed paths to their last-applied template version and content hash.
// The lockfile is the contract between runs: plan derives its baseline from
// it and apply advances it.
package lockfile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/pkg/safeio"
)

// DefaultName is the lockfile's filename at the adopter repository root.
const DefaultName = ".tplsync.lock"

// CurrentVersion is the lockfile format version this build writes.
const CurrentVersion = 1

// ErrCorrupt marks a lockfile that exists but cannot be trusted: broken
// YAML or a schema violation. Callers treat it as fatal rather than
// guessing at provenance.
var ErrCorrupt = errors.New("lockfile corrupt")

//go:embed schema.yaml
var schemaYAML []byte

var schema *gojsonschema.Schema

func init() {
	var doc interface{}
	if err := yaml.Unmarshal(schemaYAML, &doc); err != nil {
		panic(fmt.Sprintf("lockfile: embedded schema is not valid YAML: %v", err))
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("lockfile: embedded schema: %v", err))
	}
	schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
	if err != nil {
		panic(fmt.Sprintf("lockfile: embedded schema does not compile: %v", err))
	}
}

// Template records the adopted template source and version.
type Template struct {
	Source string `yaml:"source" json:"source"`
	Ref    string `yaml:"ref" json:"ref"`
	// Commit is the resolved commit hash when the source is git-backed.
	Commit string `yaml:"commit,omitempty" json:"commit,omitempty"`
}

// Entry is the provenance of one managed path.
type Entry struct {
	Path string `yaml:"path" json:"path"`
	// Version is the template version whose content was last applied.
	Version string `yaml:"version" json:"version"`
	// Hash is the content hash of the file as last written by the tool,
	// not of whatever the adopter has edited it into since.
	Hash      string             `yaml:"hash" json:"hash"`
	Ownership pathrule.Ownership `yaml:"ownership" json:"ownership"`
}

// Lock is the full lockfile document.
type Lock struct {
	Version  int             `yaml:"version" json:"version"`
	Template Template        `yaml:"template" json:"template"`
	Rules    []pathrule.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	Entries  []Entry         `yaml:"files" json:"files"`
}

// New builds an empty lockfile for a freshly adopted template.
func New(tpl Template, rules []pathrule.Rule) *Lock {
	return &Lock{Version: CurrentVersion, Template: tpl, Rules: rules}
}

// Load reads and validates the lockfile at path. A missing file returns an
// error satisfying os.IsNotExist; anything unparseable or schema-invalid
// returns an error wrapping ErrCorrupt.
func Load(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if err := validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	// Unknown fields are ignored for forward compatibility.
	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return &lock, nil
}

func validate(doc interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	var msgs []string
	for _, verr := range result.Errors() {
		field := verr.Field()
		if field == "" {
			field = "root"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, verr.Description()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Save writes the lockfile atomically with entries in path order, so runs
// over identical state produce identical bytes.
func (l *Lock) Save(path string) error {
	l.sortEntries()
	out, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}
	if err := safeio.WriteFileAtomic(path, out); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}

// Entry returns the provenance record for path, if tracked.
func (l *Lock) Entry(path string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// Upsert inserts or replaces the record for e.Path.
func (l *Lock) Upsert(e Entry) {
	for i := range l.Entries {
		if l.Entries[i].Path == e.Path {
			l.Entries[i] = e
			return
		}
	}
	l.Entries = append(l.Entries, e)
}

// Remove drops the record for path, if present.
func (l *Lock) Remove(path string) {
	for i := range l.Entries {
		if l.Entries[i].Path == path {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return
		}
	}
}

// Paths returns all tracked paths in sorted order.
func (l *Lock) Paths() []string {
	out := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Path)
	}
	sort.Strings(out)
	return out
}

// CompiledRules compiles the lockfile's managed-path rules.
func (l *Lock) CompiledRules() (*pathrule.RuleSet, error) {
	return pathrule.Compile(l.Rules)
}

func (l *Lock) sortEntries() {
	sort.Slice(l.Entries, func(i, j int) bool {
		return l.Entries[i].Path < l.Entries[j].Path
	})
}
