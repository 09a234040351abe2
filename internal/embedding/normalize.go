package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

var ErrUnexpectedShape = errors.New("unexpected embedding response shape")

type openAIPayload struct {
	Data []struct {
		Embedding []float32 `mapstructure:"embedding"`
	} `mapstructure:"data"`
}

type valuesPayload struct {
	Values []float32 `mapstructure:"values"`
}

// DecodeJSON parses a raw upstream response and normalizes it.
func DecodeJSON(body []byte) ([]float32, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return Normalize(payload)
}

// Normalize maps the accepted upstream response schemas onto a single
// vector:
//
//	{"data": [{"embedding": [...]}]}          OpenAI compatible
//	{"embedding": [...]}                      Ollama, Titan v1
//	{"embedding": {"values": [...]}}          Titan v2, Gemini REST
//	{"embeddings": [[...]]}                   batch lists
//	{"embeddings": [{"values": [...]}]}       Gemini batch, Cohere
func Normalize(payload map[string]any) ([]float32, error) {
	if raw, ok := payload["data"]; ok {
		var out openAIPayload
		if err := mapstructure.Decode(map[string]any{"data": raw}, &out); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrUnexpectedShape, err)
		}
		if len(out.Data) == 0 {
			return nil, fmt.Errorf("%w: empty data list", ErrUnexpectedShape)
		}
		return nonEmpty(out.Data[0].Embedding)
	}

	if raw, ok := payload["embedding"]; ok {
		return decodeVector(raw)
	}

	if raw, ok := payload["embeddings"]; ok {
		list, ok := raw.([]any)
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("%w: embeddings is not a non-empty list", ErrUnexpectedShape)
		}
		return decodeVector(list[0])
	}

	return nil, fmt.Errorf("%w: keys %v", ErrUnexpectedShape, keys(payload))
}

func decodeVector(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []any:
		var out []float32
		if err := mapstructure.Decode(v, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return nonEmpty(out)
	case map[string]any:
		var out valuesPayload
		if err := mapstructure.Decode(v, &out); err != nil {
			return nil, fmt.Errorf("%w: values: %v", ErrUnexpectedShape, err)
		}
		return nonEmpty(out.Values)
	default:
		return nil, fmt.Errorf("%w: vector of type %T", ErrUnexpectedShape, raw)
	}
}

func nonEmpty(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	return v, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
