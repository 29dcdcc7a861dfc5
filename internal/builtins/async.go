package builtins

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flowquery-lang/flowquery/internal/registry"
	"github.com/flowquery-lang/flowquery/internal/value"
)

// sliceSequence adapts an already-materialised slice of values to
// registry.AsyncSequence — fetchJson fetches and parses its whole response
// eagerly (HTTP bodies are not natively chunkable into the value domain),
// then hands back a trivial pull-driven cursor over the result so the
// executor's LIMIT short-circuiting still works uniformly across providers.
type sliceSequence struct {
	elems []value.Value
	i     int
}

func (s *sliceSequence) Next(ctx context.Context) (value.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return value.Null, false, err
	}
	if s.i >= len(s.elems) {
		return value.Null, false, nil
	}
	v := s.elems[s.i]
	s.i++
	return v, true, nil
}

func (s *sliceSequence) Close() {}

// fetchJsonProvider implements fetchJson(url[, options]) (spec.md §4.9,
// §6): iterates a top-level JSON array or yields the single parsed value,
// the same shape LOAD's HTTP JSON form uses (internal/exec/http.go
// emitLoadJSON), reused here via the shared client injected at
// registration time.
func fetchJsonProvider(client *http.Client) registry.AsyncProvider {
	return func(ctx context.Context, args []value.Value) (registry.AsyncSequence, error) {
		if len(args) == 0 || args[0].Kind() != value.KindString {
			return nil, fmt.Errorf("fetchJson(): expects a URL string as first argument")
		}
		url := args[0].Str()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if len(args) > 1 && args[1].Kind() == value.KindMap {
			if hv, ok := args[1].Get("headers"); ok && hv.Kind() == value.KindMap {
				for _, k := range hv.Keys() {
					v, _ := hv.Get(k)
					req.Header.Set(k, value.CoerceForFString(v))
				}
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("fetchJson(): %s: HTTP %d", url, resp.StatusCode)
		}

		parsed, err := value.ParseJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("fetchJson(): invalid JSON response: %w", err)
		}
		if parsed.Kind() == value.KindArray {
			return &sliceSequence{elems: parsed.Elements()}, nil
		}
		return &sliceSequence{elems: []value.Value{parsed}}, nil
	}
}
