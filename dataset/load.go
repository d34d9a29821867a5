package dataset

import (
	"bytes"
	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
)

//go:embed schema.cue
var schemaSource string

// Load reads a YAML descriptor from filesystem. The file is decoded strictly
// (unknown keys are rejected), checked against the embedded CUE schema, and
// then validated with Validate.
func Load(filesystem fs.Filesystem, path string) (Descriptor, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return Descriptor{}, errors.Wrap(errors.CodeNotFound, "dataset.Load", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML descriptor.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return Descriptor{}, errors.Wrap(errors.CodeInvalidConfig, "dataset.Parse", err)
	}

	if err := checkSchema(d); err != nil {
		return Descriptor{}, err
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// checkSchema unifies the decoded descriptor with #Descriptor.
func checkSchema(d Descriptor) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "dataset.checkSchema", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Descriptor"))

	value := ctx.Encode(d)
	if err := value.Err(); err != nil {
		return errors.Wrap(errors.CodeSchemaFailed, "dataset.checkSchema", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return errors.Wrap(errors.CodeSchemaFailed, "dataset.checkSchema", err)
	}
	return nil
}
