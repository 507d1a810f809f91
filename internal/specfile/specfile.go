// Package specfile parses a --spec YAML file describing one or more syncs
// to run sequentially in a single invocation, supplementing the
// single-sync CLI surface spec.md itself describes.
//
// Grounded on the teacher's pkg/configuration package (decodes a YAML
// project file into a typed struct via gopkg.in/yaml.v3) and its
// pkg/compose package (a list of named, independently configured units
// within one file) -- the shape a --spec file needs, a list of
// independent syncs each with their own filters and policies, is the
// direct analogue of a compose file's list of services.
package specfile

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Policy mirrors the four --dest-* CLI flags, so a --spec entry can set
// them per-sync instead of inheriting one global choice.
type Policy struct {
	DestFileNewer        string `yaml:"destFileNewer,omitempty"`
	DestFileOlder        string `yaml:"destFileOlder,omitempty"`
	DestEntryNeedsDelete string `yaml:"destEntryNeedsDelete,omitempty"`
	DestRootNeedsDelete  string `yaml:"destRootNeedsDelete,omitempty"`
}

// Sync is one entry in a --spec file: a single source/destination pair
// with its own filters and policy overrides.
type Sync struct {
	Src     string   `yaml:"src"`
	Dest    string   `yaml:"dest"`
	Filters []string `yaml:"filters,omitempty"`
	Policy  Policy   `yaml:"policy,omitempty"`
}

// Spec is the top-level document: an ordered list of syncs, run one after
// another. Order is preserved by yaml.v3's sequence decoding, so no
// separate ordering field is needed.
type Spec struct {
	Syncs []Sync `yaml:"syncs"`
}

// Load reads and parses a --spec file at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading spec file %q", path)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parsing spec file %q", path)
	}
	if len(s.Syncs) == 0 {
		return nil, errors.Errorf("spec file %q defines no syncs", path)
	}
	for i, sync := range s.Syncs {
		if sync.Src == "" || sync.Dest == "" {
			return nil, errors.Errorf("spec file %q: sync #%d is missing src or dest", path, i)
		}
	}
	return &s, nil
}
