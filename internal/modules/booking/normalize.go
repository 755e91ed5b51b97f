package booking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"homestay/internal/domain"
)

// listKeys are the object keys a booking collection has been seen under.
var listKeys = []string{"data", "bookings"}

const maxListDepth = 3

// DecodeBookingList accepts every collection shape the backend produces:
// a bare array, {data: [...]}, {data: {data: [...]}}, {bookings: [...]} and
// the keyed forms nested under data. The result is newest first.
func DecodeBookingList(raw []byte) ([]domain.Booking, error) {
	list, err := decodeList(raw, 0)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(list)
	return list, nil
}

func decodeList(raw []byte, depth int) ([]domain.Booking, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []domain.Booking{}, nil
	}
	if depth > maxListDepth {
		return nil, ErrUnrecognizedList
	}

	switch raw[0] {
	case '[':
		var list []domain.Booking
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode booking list: %w", err)
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode booking list: %w", err)
		}
		for _, key := range listKeys {
			if inner, ok := obj[key]; ok {
				return decodeList(inner, depth+1)
			}
		}
	}
	return nil, ErrUnrecognizedList
}

func SortNewestFirst(list []domain.Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
