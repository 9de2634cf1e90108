package behavior

// Source identifies where an event was captured.
type Source string

const SourceExtension Source = "extension"

// Type is the behavior_type of an event.
type Type string

const (
	TypeVisit              Type = "visit"
	TypeTimeSpent          Type = "time_spent"
	TypeSearch             Type = "search"
	TypeSearchClick        Type = "search_click"
	TypeEngagement         Type = "engagement"
	TypeTweetView          Type = "tweet_view"
	TypeTweetLike          Type = "tweet_like"
	TypeTweetCompose       Type = "tweet_compose"
	TypeTweetRetweet       Type = "tweet_retweet"
	TypeYouTubeVideoWatch  Type = "youtube_video_watch"
	TypeYouTubeCommentView Type = "youtube_comment_view"
)

// Category is the closed set of derived page/event categories.
type Category string

const (
	CategoryTechnology    Category = "technology"
	CategorySocial        Category = "social"
	CategoryNews          Category = "news"
	CategoryEntertainment Category = "entertainment"
	CategoryEducation     Category = "education"
	CategoryShopping      Category = "shopping"
	CategoryHealth        Category = "health"
	CategoryFinance       Category = "finance"
	CategorySearch        Category = "search"
	CategoryGeneral       Category = "general"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{
		CategoryTechnology, CategorySocial, CategoryNews, CategoryEntertainment,
		CategoryEducation, CategoryShopping, CategoryHealth, CategoryFinance,
		CategorySearch, CategoryGeneral,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Tilt is the heuristic political lean of a piece of text.
type Tilt string

const (
	TiltLeft    Tilt = "left"
	TiltRight   Tilt = "right"
	TiltNeutral Tilt = "neutral"
)
