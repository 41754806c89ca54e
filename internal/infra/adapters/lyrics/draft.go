package lyrics

import (
	"encoding/json"
	"errors"
	"strings"

	"school-song-portal/internal/domain/ports/adapter"
)

// parseDraft decodes a model reply into a draft. Models that cannot be
// forced into JSON mode sometimes wrap the object in prose, so we fall
// back to the outermost brace pair, and finally to treating the whole
// reply as raw lyrics.
func parseDraft(content string) (*adapter.LyricsDraft, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty model reply")
	}

	var d adapter.LyricsDraft
	if err := json.Unmarshal([]byte(content), &d); err == nil && d.Lyrics != "" {
		return &d, nil
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &d); err == nil && d.Lyrics != "" {
			return &d, nil
		}
	}

	return &adapter.LyricsDraft{
		Title:  "Generated Song",
		Lyrics: content,
		Style:  "pop, melodic",
	}, nil
}
