package core

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// StringList is a list of strings stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan rejects anything that is not a JSON array of strings.
func (l *StringList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("scanning StringList: unsupported type %T", src)
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "scanning StringList")
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}
