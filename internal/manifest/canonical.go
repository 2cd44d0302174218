package manifest

import (
	"bytes"
	"encoding/json"
	"sort"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
)

var (
	errManifestField   = bundleerrors.New(bundleerrors.ErrCodeManifestInvalid, "manifest missing required field", nil)
	errManifestOrdering = bundleerrors.New(bundleerrors.ErrCodeManifestInvalid, "manifest updatedAt precedes createdAt", nil)
)

// MarshalCanonical renders v as canonical JSON: object keys sorted
// lexicographically at every level, 2-space indent, trailing newline,
// UTF-8. This is the exact on-disk shape of manifest.json and FACTS.json.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to marshal for canonicalization", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to decode for canonicalization", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic, ""); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// encodeCanonical writes v into buf with sorted object keys and 2-space
// indentation, recursing through maps and slices.
func encodeCanonical(buf *bytes.Buffer, v any, indent string) error {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		childIndent := indent + "  "
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(childIndent)
			keyJSON, _ := json.Marshal(k)
			buf.Write(keyJSON)
			buf.WriteString(": ")
			if err := encodeCanonical(buf, val[k], childIndent); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteByte('}')
		return nil

	case []any:
		if len(val) == 0 {
			buf.WriteString("[]")
			return nil
		}
		childIndent := indent + "  "
		buf.WriteString("[\n")
		for i, item := range val {
			buf.WriteString(childIndent)
			if err := encodeCanonical(buf, item, childIndent); err != nil {
				return err
			}
			if i < len(val)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteByte(']')
		return nil

	default:
		leaf, err := json.Marshal(val)
		if err != nil {
			return bundleerrors.New(bundleerrors.ErrCodeInternal, "failed to marshal leaf value", err)
		}
		buf.Write(leaf)
		return nil
	}
}
