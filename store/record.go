package store

import (
	"github.com/goccy/go-json"

	apperrors "github.com/kbukum/smokedb/errors"
)

// Record is a stored value together with its key.
type Record[T any] struct {
	Key   string `json:"key"`
	Value T      `json:"value"`
}

// RawRecord is a record as drivers see it: the key and the encoded value.
type RawRecord struct {
	Key   string
	Value []byte
}

// Sealer encrypts encoded values before they reach the driver. The store
// name and key are passed as additional data, so a sealed value only opens
// under the record it was written for.
type Sealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(sealed, additional []byte) ([]byte, error)
}

// codec turns records of one store into raw records and back.
type codec struct {
	store  string
	sealer Sealer
}

func (c codec) additional(key string) []byte {
	return []byte(c.store + "/" + key)
}

func encodeRecord[T any](c codec, rec Record[T]) (RawRecord, error) {
	data, err := json.Marshal(rec.Value)
	if err != nil {
		return RawRecord{}, apperrors.Encoding(rec.Key, err)
	}
	if c.sealer != nil {
		if data, err = c.sealer.Seal(data, c.additional(rec.Key)); err != nil {
			return RawRecord{}, apperrors.Encoding(rec.Key, err)
		}
	}
	return RawRecord{Key: rec.Key, Value: data}, nil
}

func encodeRecords[T any](c codec, records []Record[T]) ([]RawRecord, error) {
	raw := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		r, err := encodeRecord(c, rec)
		if err != nil {
			return nil, err
		}
		raw = append(raw, r)
	}
	return raw, nil
}

func decodeRecord[T any](c codec, raw RawRecord) (Record[T], error) {
	data := raw.Value
	if c.sealer != nil {
		var err error
		if data, err = c.sealer.Open(data, c.additional(raw.Key)); err != nil {
			return Record[T]{}, apperrors.Encoding(raw.Key, err)
		}
	}
	rec := Record[T]{Key: raw.Key}
	if err := json.Unmarshal(data, &rec.Value); err != nil {
		return Record[T]{}, apperrors.Encoding(raw.Key, err)
	}
	return rec, nil
}
