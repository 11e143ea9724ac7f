package worldbank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"wbi/internal/model"
	"wbi/internal/normalize"
)

// flexInt accepts a JSON number or a numeric string; per_page in particular
// arrives as "1000".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(trimmed)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*f = 0
			return nil
		}
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		parsed, floatErr := strconv.ParseFloat(text, 64)
		if floatErr != nil || parsed != float64(int(parsed)) {
			return fmt.Errorf("not an integer: %s", text)
		}
		value = int(parsed)
	}
	*f = flexInt(value)
	return nil
}

type pageMeta struct {
	Page    flexInt `json:"page"`
	Pages   flexInt `json:"pages"`
	PerPage flexInt `json:"per_page"`
	Total   flexInt `json:"total"`
}

type indicatorMeta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// splitEnvelope validates the [meta, data] envelope and surfaces an API
// error payload ([{"message": ...}]) as a permanent http error.
func splitEnvelope(body []byte, tgt target) ([]json.RawMessage, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, tgt.fail(KindMalformedResponse, 0, "expected a top-level array", err)
	}
	if len(envelope) == 0 {
		return nil, tgt.fail(KindMalformedResponse, 0, "empty top-level array", nil)
	}

	var probe struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(envelope[0], &probe); err == nil && len(probe.Message) > 0 {
		return nil, tgt.fail(KindHTTP, 200, "api error: "+apiMessage(probe.Message), nil)
	}
	return envelope, nil
}

func decodePage(body []byte, tgt target) (model.PageMeta, []normalize.Entry, error) {
	envelope, err := splitEnvelope(body, tgt)
	if err != nil {
		return model.PageMeta{}, nil, err
	}

	var meta pageMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return model.PageMeta{}, nil, tgt.fail(KindMalformedResponse, 0, "decode page metadata (element 0)", err)
	}
	pm := model.PageMeta{
		Page:    int(meta.Page),
		Pages:   int(meta.Pages),
		PerPage: int(meta.PerPage),
		Total:   int(meta.Total),
	}
	if len(envelope) < 2 || isNull(envelope[1]) {
		return pm, nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(envelope[1], &raw); err != nil {
		return model.PageMeta{}, nil, tgt.fail(KindMalformedResponse, 0, "decode entries (element 1): expected an array", err)
	}
	entries := make([]normalize.Entry, 0, len(raw))
	for i, item := range raw {
		var entry normalize.Entry
		if err := json.Unmarshal(item, &entry); err != nil {
			return model.PageMeta{}, nil, tgt.fail(KindMalformedResponse, 0, fmt.Sprintf("decode entry %d", i), err)
		}
		entries = append(entries, entry)
	}
	return pm, entries, nil
}

func decodeIndicators(body []byte, tgt target) ([]model.IndicatorMeta, error) {
	envelope, err := splitEnvelope(body, tgt)
	if err != nil {
		return nil, err
	}
	if len(envelope) < 2 || isNull(envelope[1]) {
		return nil, nil
	}

	var raw []indicatorMeta
	if err := json.Unmarshal(envelope[1], &raw); err != nil {
		return nil, tgt.fail(KindMalformedResponse, 0, "decode indicator metadata (element 1)", err)
	}
	metas := make([]model.IndicatorMeta, 0, len(raw))
	for _, item := range raw {
		metas = append(metas, model.IndicatorMeta{ID: item.ID, Name: item.Name, Unit: item.Unit})
	}
	return metas, nil
}

// apiMessage flattens the message field, which is either a string or a list
// of {id, key, value} objects.
func apiMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var items []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			part := strings.TrimSpace(item.Key + ": " + item.Value)
			if item.ID != "" {
				part = "[" + item.ID + "] " + part
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, "; ")
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
