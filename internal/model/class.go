package model

// Class represents a school class, e.g. "JSS 2" stream "B".
type Class struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Stream string `json:"stream"`
}
