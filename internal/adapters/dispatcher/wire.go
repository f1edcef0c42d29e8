package dispatcher

import (
	"bytes"
	"courier-route-service/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Inbound message types. The legacy names are still sent by older dispatchers.
const (
	TypeBulkReplace       = "bulk-replace"
	TypeAdd               = "add"
	TypeDelete            = "delete"
	TypePermutationAnswer = "permutation-answer"

	legacySendFile        = "send_file"
	legacyAddresses       = "addresses"
	legacyDeleteAddresses = "delete_addresses"
	legacySendAnswer      = "send_answer"
)

// Outbound message types.
const (
	TypeHello        = "hello"
	TypeSyncRequest  = "sync-request"
	TypeMatrixReady  = "matrix-ready"
	TypeStopsChanged = "stops-changed"
	TypeRejected     = "rejected"
)

// Envelope is one websocket text frame in either direction.
type Envelope struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Generation *uint64         `json:"generation,omitempty"`
	CycleID    string          `json:"cycle_id,omitempty"`
}

type helloData struct {
	Driver string `json:"driver"`
}

type matrixReadyData struct {
	Matrix       [][]int  `json:"matrix"`
	Partial      bool     `json:"partial"`
	UnknownPairs [][2]int `json:"unknown_pairs,omitempty"`
}

type stopsChangedData struct {
	Size int `json:"size"`
}

type rejectedData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Decode parses an inbound frame into domain.ReplaceStops, domain.AddStops,
// domain.DeleteStops or domain.PermutationAnswer.
func Decode(frame []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w: %v", domain.ErrMalformedEvent, err)
	}

	switch env.Type {
	case TypeBulkReplace, legacySendFile:
		labels, err := decodeLabels(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return domain.ReplaceStops{Labels: labels}, nil

	case TypeAdd, legacyAddresses:
		labels, err := decodeLabels(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return domain.AddStops{Labels: labels}, nil

	case TypeDelete, legacyDeleteAddresses:
		indices, err := decodeIndices(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return domain.DeleteStops{Indices: indices, Generation: env.Generation}, nil

	case TypePermutationAnswer, legacySendAnswer:
		order, err := decodeIndices(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return domain.PermutationAnswer{Order: order, CycleID: env.CycleID, Generation: env.Generation}, nil

	default:
		return nil, fmt.Errorf("unknown message type %q: %w", env.Type, domain.ErrMalformedEvent)
	}
}

// unquote returns the inner text when data is a JSON string, as legacy
// dispatchers double-encode their arrays.
func unquote(data json.RawMessage) (json.RawMessage, string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return data, "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return data, "", false
	}
	return json.RawMessage(s), s, true
}

func decodeLabels(data json.RawMessage) ([]string, error) {
	raw, _, _ := unquote(data)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("missing address list: %w", domain.ErrMalformedEvent)
	}

	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("address list: %w: %v", domain.ErrMalformedEvent, err)
	}
	return labels, nil
}

// decodeIndices accepts [0,2,1], "[0,2,1]" and "0,2,1".
func decodeIndices(data json.RawMessage) ([]int, error) {
	raw, text, quoted := unquote(data)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("missing index list: %w", domain.ErrMalformedEvent)
	}

	var out []int
	err := json.Unmarshal(raw, &out)
	if err == nil {
		return out, nil
	}
	if !quoted {
		return nil, fmt.Errorf("index list: %w: %v", domain.ErrMalformedEvent, err)
	}

	out = nil

	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", part, domain.ErrMalformedEvent)
		}
		out = append(out, n)
	}
	return out, nil
}

func encode(typ string, data any, generation *uint64, cycleID string) (Envelope, error) {
	env := Envelope{Type: typ, Generation: generation, CycleID: cycleID}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Data = b
	}
	return env, nil
}

func matrixReady(m domain.DistanceMatrix) (Envelope, error) {
	data := matrixReadyData{Matrix: m.Cells, Partial: m.Partial()}
	if data.Matrix == nil {
		data.Matrix = [][]int{}
	}
	for _, f := range m.Failures {
		data.UnknownPairs = append(data.UnknownPairs, [2]int{f.I, f.J})
	}
	gen := m.Generation
	return encode(TypeMatrixReady, data, &gen, m.CycleID)
}
