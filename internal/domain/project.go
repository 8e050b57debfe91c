package domain

// Shot is a single storyboard entry. Generated media is not stored here;
// handlers keep per-index reference maps alongside the project so that a
// backup can snapshot both together.
type Shot struct {
	Description string `json:"description"`
	ImagePrompt string `json:"imagePrompt"`
	VideoPrompt string `json:"videoPrompt"`
	Narration   string `json:"narration,omitempty"`
}

// Project is the storyboard working state a backup document snapshots.
type Project struct {
	Title string `json:"title"`
	Topic string `json:"topic,omitempty"`
	Style string `json:"style,omitempty"`
	Shots []Shot `json:"shots"`
}
