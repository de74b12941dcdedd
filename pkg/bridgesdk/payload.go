package bridgesdk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

// ExtractPayload finds the payload script element in a rendered page and
// decodes it.
func ExtractPayload(page []byte) (*bridge.Payload, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inPayload := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil, ErrNoPayload
			}
			return nil, fmt.Errorf("failed to parse page: %w", z.Err())

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "id" && string(val) == PayloadElementID {
					inPayload = true
				}
				if !more {
					break
				}
			}

		case html.TextToken:
			if !inPayload {
				continue
			}
			var p bridge.Payload
			if err := json.Unmarshal(z.Text(), &p); err != nil {
				return nil, fmt.Errorf("failed to decode payload: %w", err)
			}
			if p.Data == nil {
				p.Data = map[string]any{}
			}
			return &p, nil

		case html.EndTagToken:
			if inPayload {
				// An empty element.
				return bridge.NewPayload(), nil
			}
		}
	}
}
