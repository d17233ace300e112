package lifecycle

import "encoding/json"

// Meta is the compact per-group metadata blob: version, namespace,
// frozen flag, and the full member group id list, so any single group's
// blob is enough to reconstruct the couple it belongs to.
type Meta struct {
	Version   int   `json:"version"`
	Namespace string `json:"namespace"`
	Frozen    bool  `json:"frozen"`
	Groups    []int `json:"groups"`
}

const metaVersion = 1

// NewMeta builds a Meta at the current version.
func NewMeta(namespace string, frozen bool, groups []int) Meta {
	return Meta{Version: metaVersion, Namespace: namespace, Frozen: frozen, Groups: append([]int(nil), groups...)}
}

// Encode serializes m to its wire form.
func Encode(m Meta) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a blob previously produced by Encode. A parse failure here
// is what the couple lifecycle reports as CorruptMeta.
func Decode(blob []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(blob, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}
