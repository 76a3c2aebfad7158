package contracts

import "time"

// NewsImpact 헤드라인 분류 결과
type NewsImpact string

const (
	NewsPositive NewsImpact = "positive"
	NewsNegative NewsImpact = "negative"
	NewsMaterial NewsImpact = "material"
	NewsNone     NewsImpact = "none"
)

// Headline is one incoming news item
type Headline struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NotifyCategory groups outgoing notifications
type NotifyCategory string

const (
	CategoryUniverse   NotifyCategory = "universe"
	CategoryCandidates NotifyCategory = "candidates"
	CategoryTradeEntry NotifyCategory = "trade-entry"
	CategoryTradeExit  NotifyCategory = "trade-exit"
	CategoryNoTrade    NotifyCategory = "no-trade"
	CategoryNews       NotifyCategory = "news"
	CategorySummary    NotifyCategory = "summary"
	CategoryError      NotifyCategory = "Error"
)
