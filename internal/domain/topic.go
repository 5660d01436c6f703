// Package domain contains core domain types for the glossary true/false game.
package domain

// Topic is a named glossary subject grouping questions.
type Topic struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SkillTag    string `json:"skill_tag,omitempty"`
	// SortOrder is the creation order used to keep topic listings stable.
	SortOrder int `json:"-"`
}

// Question is an immutable term/definition statement the player judges as true or false.
type Question struct {
	ID                  string `json:"id"`
	TopicID             string `json:"topic_id"`
	Term                string `json:"term"`
	ShownDefinition     string `json:"shown_definition"`
	IsDefinitionCorrect bool   `json:"is_definition_correct"`
	Explanation         string `json:"explanation"`
	IconKey             string `json:"icon_key,omitempty"`
	OrderIndex          int    `json:"order_index"`
}

// TopicStats summarizes a user's play history for one topic.
type TopicStats struct {
	TopicID    string  `json:"topic_id"`
	Attempts   int     `json:"attempts"`
	Accuracy   float64 `json:"accuracy"`
	BestStreak int     `json:"best_streak"`
}
