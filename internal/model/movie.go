package model

// DefaultMatchThreshold is the similarity cutoff for semantic search.
const DefaultMatchThreshold = 0.8

// DefaultSearchLimit is the result limit when a search request omits one.
const DefaultSearchLimit = 3

// Movie is one row of the movie catalog.
type Movie struct {
	Title       string `json:"title" yaml:"title"`
	PosterKey   string `json:"poster_key" yaml:"poster_key"`
	Description string `json:"description" yaml:"description"`
	Rating      string `json:"rating" yaml:"rating"`
	MovieID     int64  `json:"movie_id" yaml:"movie_id"`
}

// SearchRequest is the request body of the search edge function.
type SearchRequest struct {
	Search         string   `json:"search"`
	MatchThreshold *float64 `json:"match_threshold,omitempty"`
	Limit          *int     `json:"limit,omitempty"`
}

// Threshold returns the requested match threshold or the default.
func (r *SearchRequest) Threshold() float64 {
	if r.MatchThreshold == nil {
		return DefaultMatchThreshold
	}
	return *r.MatchThreshold
}

// MaxResults returns the requested limit or the default.
func (r *SearchRequest) MaxResults() int {
	if r.Limit == nil || *r.Limit <= 0 {
		return DefaultSearchLimit
	}
	return *r.Limit
}

// SearchResponse is the response body of the search edge function.
type SearchResponse struct {
	Search string  `json:"search"`
	Result []Movie `json:"result"`
}

// ShowTimes is the payload of a showTimes event.
type ShowTimes struct {
	Title string   `json:"title"`
	Times []string `json:"times"`
}

// SeatSelection is the payload of a showSeats event.
type SeatSelection struct {
	Movie string `json:"movie"`
	Time  string `json:"time"`
	Date  string `json:"date"`
}

// PurchaseSummary is the payload of a purchaseTickets event.
type PurchaseSummary struct {
	Movie string   `json:"movie"`
	Time  string   `json:"time"`
	Price float64  `json:"price"`
	Seats []string `json:"seats"`
}

// DefaultShowTimes are offered when a movie list narrows to one title.
var DefaultShowTimes = []string{"15:30", "17:20", "19:30", "20:00", "21:50"}

// SeatRows and SeatsPerRow describe the auditorium layout.
var SeatRows = []string{"A", "B", "C", "D", "E"}

const SeatsPerRow = 10

// DefaultSeatPrice is the ticket price per seat.
const DefaultSeatPrice = 7.5
