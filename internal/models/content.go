package models

// Example is a worked example inside a content block.
type Example struct {
	Text        string `json:"text" validate:"required"`
	Translation string `json:"translation,omitempty"`
}

// Exercise is a practice item inside a content block.
type Exercise struct {
	Prompt string `json:"prompt" validate:"required"`
	Answer string `json:"answer" validate:"required"`
	Kind   string `json:"kind,omitempty"` // e.g. fill_blank, transform, respond
}

// ContentBlock is the structured payload produced by one capability
// provider for one topic. Blocks are immutable once validated.
type ContentBlock struct {
	Capability  Capability `json:"capability" validate:"required,capability"`
	Topic       string     `json:"topic" validate:"required"`
	Level       Level      `json:"level" validate:"required,cefr_level"`
	Explanation string     `json:"explanation" validate:"required"`
	Examples    []Example  `json:"examples" validate:"required,min=1,dive"`
	Exercises   []Exercise `json:"exercises" validate:"required,min=1,dive"`
	Tip         string     `json:"tip,omitempty"`
	Provider    string     `json:"provider,omitempty"` // which backend produced the block
}
