// Package ruledoc reads and writes rule documents on disk.
//
// A document is either an editable draft (the types.Rule JSON shape, ids
// optional) or a canonical document (no ids). Both decode into types.Rule;
// missing ids are assigned so the result can be edited. YAML documents are
// converted to JSON first, so JSON remains the single decoding path and the
// enum and value checks in internal/types apply to both formats.
package ruledoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/stagekeeper/internal/rules"
	"github.com/solatis/stagekeeper/internal/types"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultMaxBytes bounds documents read by LoadFile.
const DefaultMaxBytes = 1 << 20

var (
	// ErrUnsupportedFormat indicates a file extension or format name ruledoc cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrDocumentTooLarge indicates a document exceeding the byte limit.
	ErrDocumentTooLarge = errors.New("document too large")
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
	}
}

// LoadFile reads a rule document from path, choosing the format by extension.
func LoadFile(path string, maxBytes int64) (types.Rule, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return types.Rule{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return types.Rule{}, fmt.Errorf("open rule document: %w", err)
	}
	defer f.Close()

	return Read(f, format, maxBytes)
}

// Read decodes a rule document from r. A maxBytes of zero or less uses DefaultMaxBytes.
func Read(r io.Reader, format Format, maxBytes int64) (types.Rule, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return types.Rule{}, fmt.Errorf("read rule document: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return types.Rule{}, fmt.Errorf("%d byte limit: %w", maxBytes, ErrDocumentTooLarge)
	}
	return Decode(data, format)
}

// Decode parses data in the given format into an editable rule with ids assigned.
func Decode(data []byte, format Format) (types.Rule, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		converted, err := yamlToJSON(data)
		if err != nil {
			return types.Rule{}, err
		}
		data = converted
	default:
		return types.Rule{}, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r types.Rule
	if err := dec.Decode(&r); err != nil {
		return types.Rule{}, fmt.Errorf("decode rule document: %w", err)
	}
	return rules.AssignIDs(r), nil
}

// Encode renders a rule as an editable draft in the given format.
func Encode(r types.Rule, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}
	switch format {
	case FormatJSON:
		return append(data, '\n'), nil
	case FormatYAML:
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("encode rule: %w", err)
		}
		return yaml.Marshal(tree)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml rule document: %w", err)
	}
	tree, err := nodeValue(&doc)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("convert yaml rule document: %w", err)
	}
	return out, nil
}

// nodeValue converts a yaml node into JSON-compatible values. Timestamps
// stay as their source text.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode || key.ShortTag() == "!!merge" {
				return nil, fmt.Errorf("line %d: unsupported yaml key: %w", key.Line, ErrUnsupportedFormat)
			}
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[key.Value] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, child := range n.Content {
			v, err := nodeValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str", "!!timestamp", "!!binary":
			return n.Value, nil
		case "!!null":
			return nil, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node: %w", n.Line, ErrUnsupportedFormat)
	}
}
