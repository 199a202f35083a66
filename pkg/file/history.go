package file

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

const historyExt = ".json"

// objectName maps a machine id to a file or object name. Ids are
// path-escaped so they can never leave the store's directory or prefix.
func objectName(id string) (string, error) {
	name := url.PathEscape(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidPath
	}
	return name + historyExt, nil
}

func decodeHistory(data []byte) (statemachine.History, error) {
	if len(data) == 0 {
		return statemachine.History{}, nil
	}
	var h statemachine.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errors.Join(ErrCorruptHistory, err)
	}
	if h == nil {
		h = statemachine.History{}
	}
	return h, nil
}

func encodeHistory(h statemachine.History) ([]byte, error) {
	if h == nil {
		h = statemachine.History{}
	}
	return json.Marshal(h)
}
