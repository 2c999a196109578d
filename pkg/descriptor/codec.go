package descriptor

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Codec decodes raw descriptor bytes into a validated Package.
type Codec interface {
	// Decode parses and validates a descriptor payload.
	Decode(data []byte) (*Package, error)
	// Supports reports whether this codec handles the given filename.
	Supports(filename string) bool
	// Name returns the codec identifier (e.g. "json", "toml").
	Name() string
}

// JSONCodec decodes recipes.cfg-style JSON descriptors.
type JSONCodec struct{}

// Decode parses a JSON descriptor and validates required fields.
func (JSONCodec) Decode(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Supports matches .cfg and .json files. The original engine stores its
// descriptor as infra/config/recipes.cfg with a JSON payload.
func (JSONCodec) Supports(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".cfg", ".json":
		return true
	}
	return false
}

func (JSONCodec) Name() string { return "json" }

// TOMLCodec decodes recipes.toml descriptors.
type TOMLCodec struct{}

// Decode parses a TOML descriptor and validates required fields.
func (TOMLCodec) Decode(data []byte) (*Package, error) {
	var pkg Package
	if err := toml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (TOMLCodec) Supports(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

func (TOMLCodec) Name() string { return "toml" }

// codecs lists the supported wire formats in detection order.
var codecs = []Codec{JSONCodec{}, TOMLCodec{}}

// DetectCodec finds the codec that handles the given file path.
// Returns an error if no codec matches.
func DetectCodec(path string) (Codec, error) {
	name := filepath.Base(path)
	for _, c := range codecs {
		if c.Supports(name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unsupported descriptor format: %s", name)
}

// Decode parses a descriptor using the codec detected from path.
func Decode(path string, data []byte) (*Package, error) {
	c, err := DetectCodec(path)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}

// Encode renders a Package as canonical JSON, the descriptor's primary
// wire format. The output is deterministic for identical inputs.
func Encode(pkg *Package) ([]byte, error) {
	return json.MarshalIndent(pkg, "", "  ")
}
