package storage

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// versionWrapper stores a document together with the version of its layout.
type versionWrapper struct {
	Version int              `json:"version"`
	Value   *json.RawMessage `json:"value"`
}

// VersionJSONEncode encodes o as JSON wrapped with version.
func VersionJSONEncode(version int, o interface{}) ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	value := json.RawMessage(raw)
	return json.Marshal(versionWrapper{
		Version: version,
		Value:   &value,
	})
}

// VersionJSONDecode decodes data produced by VersionJSONEncode,
// handing the layout version and a decoder for the value to decF.
func VersionJSONDecode(data []byte, decF func(version int, dec *json.Decoder) error) error {
	var w versionWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "decode version wrapper")
	}
	if w.Value == nil {
		return errors.New("empty value")
	}
	return decF(w.Version, json.NewDecoder(bytes.NewReader(*w.Value)))
}
