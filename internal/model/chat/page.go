package chat

// Summary identifies a conversation without its items.
type Summary struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	VisitorID string `json:"visitorId,omitempty"`
}

// Pagination is the cursor block of a history response.
type Pagination struct {
	HasMore bool `json:"hasMore"`
}

// HistoryPage is one page of conversation history as served by the API,
// ordered newest-first.
type HistoryPage struct {
	Chat       Summary    `json:"chat"`
	Pagination Pagination `json:"pagination"`
	Items      []Item     `json:"items"`
}
