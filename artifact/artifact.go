// Package artifact extracts the structured deliverable embedded in a
// conversation transcript. Participants are instructed to wrap the final
// page in a fenced block (```html ... ```); the Extractor locates the first
// well-formed block and returns its trimmed interior.
//
// Extraction is deliberately stricter than the termination gate that checks
// for an artifact: the gate only requires an opened fence, while extraction
// requires a matching closing fence and a non-empty interior.
package artifact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/sitecrew/transcript"
)

// ErrNotFound is returned when no turn in the transcript contains a
// well-formed fenced block for the extractor's tag.
var ErrNotFound = fmt.Errorf("artifact not found")

// DefaultTag is the fence tag used for generated web pages.
const DefaultTag = "html"

// Artifact is the extracted deliverable: the fenced block's interior plus
// the tag it was declared with. Content is non-empty after a successful
// extraction.
type Artifact struct {
	Tag     string
	Content string
}

// Extractor scans transcripts for fenced blocks of a fixed tag.
type Extractor struct {
	tag     string
	pattern *regexp.Regexp
}

// NewExtractor creates an extractor for the given fence tag (case
// insensitive). An empty tag defaults to DefaultTag.
func NewExtractor(tag string) *Extractor {
	if tag == "" {
		tag = DefaultTag
	}
	// Non-greedy interior so two adjacent fences in one turn are not
	// swallowed as a single block.
	pattern := regexp.MustCompile(`(?is)` + "```" + regexp.QuoteMeta(tag) + `\s*([\s\S]*?)` + "```")
	return &Extractor{tag: tag, pattern: pattern}
}

// Tag returns the fence tag this extractor matches.
func (e *Extractor) Tag() string { return e.tag }

// Extract returns the first well-formed fenced block found scanning turns
// oldest-to-newest. A block whose trimmed interior is empty is skipped.
// Returns ErrNotFound if no turn yields an accepted match. Extract never
// mutates the transcript and is deterministic for identical input.
func (e *Extractor) Extract(turns []transcript.Turn) (Artifact, error) {
	for _, turn := range turns {
		if turn.Text == "" {
			continue
		}
		for _, m := range e.pattern.FindAllStringSubmatch(turn.Text, -1) {
			content := strings.TrimSpace(m[1])
			if content == "" {
				continue
			}
			return Artifact{Tag: e.tag, Content: content}, nil
		}
	}
	return Artifact{}, ErrNotFound
}

// FenceOpened reports whether text contains an opened fence for the tag,
// regardless of whether it is ever closed. This is the looser check used by
// the termination gates.
func (e *Extractor) FenceOpened(text string) bool {
	return strings.Contains(strings.ToLower(text), "```"+strings.ToLower(e.tag))
}
