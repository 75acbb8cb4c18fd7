package crawler

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString accepts a JSON string, number, or null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			// booleans and objects carry no price
			*f = ""
			return nil
		}
		*f = flexString(n.String())
	}
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else leaves it unset
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		*f = flexInt{}
		return nil
	}
	*f = flexInt{Value: n, Set: true}
	return nil
}
