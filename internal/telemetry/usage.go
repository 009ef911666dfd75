package telemetry

import "github.com/tidwall/gjson"

// Usage is the token accounting reported by the upstream, when present.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// ParseUsage extracts usageMetadata from a response body. Non-streaming
// responses are a single object; buffered streaming bodies are a JSON array
// of chunks where usage arrives on one of the last chunks, so the array is
// scanned backward. Returns nil when no usage is present or the body is not
// JSON.
func ParseUsage(body []byte) *Usage {
	if len(body) == 0 {
		return nil
	}
	parsed := gjson.ParseBytes(body)
	switch {
	case parsed.IsObject():
		return usageFrom(parsed.Get("usageMetadata"))
	case parsed.IsArray():
		chunks := parsed.Array()
		for i := len(chunks) - 1; i >= 0; i-- {
			if u := usageFrom(chunks[i].Get("usageMetadata")); u != nil {
				return u
			}
		}
	}
	return nil
}

func usageFrom(meta gjson.Result) *Usage {
	if !meta.Exists() {
		return nil
	}
	return &Usage{
		PromptTokens:     meta.Get("promptTokenCount").Int(),
		CompletionTokens: meta.Get("candidatesTokenCount").Int(),
		TotalTokens:      meta.Get("totalTokenCount").Int(),
	}
}

// Apply copies the usage counts onto a record.
func (u *Usage) Apply(rec *Record) {
	if u == nil {
		return
	}
	p, c, tot := u.PromptTokens, u.CompletionTokens, u.TotalTokens
	rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens = &p, &c, &tot
}
