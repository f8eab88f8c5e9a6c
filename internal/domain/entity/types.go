package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// IntList - список целых чисел, хранимый в JSONB
// (перестановки вариантов ответа, список лучших результатов периода).
type IntList []int

// Scan реализует интерфейс sql.Scanner для IntList
func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*l = nil
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Value реализует интерфейс driver.Valuer для IntList
func (l IntList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}
