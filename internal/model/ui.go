package model

// DescriptorKind identifies what a UI descriptor renders.
type DescriptorKind string

const (
	KindNone           DescriptorKind = "none"
	KindUserMessage    DescriptorKind = "user_message"
	KindBotMessage     DescriptorKind = "bot_message"
	KindSpinner        DescriptorKind = "spinner"
	KindMoviesSkeleton DescriptorKind = "movies_skeleton"
	KindMovieList      DescriptorKind = "movie_list"
	KindTimePicker     DescriptorKind = "time_picker"
	KindSeatPicker     DescriptorKind = "seat_picker"
	KindPurchase       DescriptorKind = "purchase"
	KindPaymentResult  DescriptorKind = "payment_result"
)

// SeatMap is the auditorium layout offered by a seat picker.
type SeatMap struct {
	Rows        []string `json:"rows"`
	SeatsPerRow int      `json:"seats_per_row"`
	SeatPrice   float64  `json:"seat_price"`
}

// MovieListing is a movie list; ShowTimes is set when exactly one movie matched.
type MovieListing struct {
	Movies    []Movie  `json:"movies"`
	ShowTimes []string `json:"show_times,omitempty"`
}

// PaymentResult is the terminal render of the payment sub-flow.
type PaymentResult struct {
	Status      PaymentStatus `json:"status"`
	Headline    string        `json:"headline"`
	Detail      string        `json:"detail"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// Descriptor is a renderable UI description. Exactly one payload field
// matching Kind is set.
type Descriptor struct {
	Kind     DescriptorKind `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Movies   *MovieListing  `json:"movies,omitempty"`
	Times    *ShowTimes     `json:"times,omitempty"`
	Seats    *SeatSelection `json:"seats,omitempty"`
	SeatMap  *SeatMap       `json:"seat_map,omitempty"`
	Purchase *PurchasePanel `json:"purchase,omitempty"`
	Payment  *PaymentResult `json:"payment,omitempty"`
}

// PurchasePanel is the purchase confirmation render.
type PurchasePanel struct {
	Status  PaymentStatus   `json:"status"`
	Summary PurchaseSummary `json:"summary"`
}

// None returns the no-op descriptor.
func None() Descriptor { return Descriptor{Kind: KindNone} }

// UserMessage returns a user message descriptor.
func UserMessage(text string) Descriptor { return Descriptor{Kind: KindUserMessage, Text: text} }

// BotMessage returns an assistant message descriptor.
func BotMessage(text string) Descriptor { return Descriptor{Kind: KindBotMessage, Text: text} }

// Spinner returns a loading placeholder.
func Spinner() Descriptor { return Descriptor{Kind: KindSpinner} }

// MoviesSkeleton returns the placeholder shown while movies load.
func MoviesSkeleton() Descriptor { return Descriptor{Kind: KindMoviesSkeleton} }

// MovieList returns a movie list descriptor.
func MovieList(movies []Movie) Descriptor {
	if movies == nil {
		movies = []Movie{}
	}
	listing := &MovieListing{Movies: movies}
	if len(movies) == 1 {
		listing.ShowTimes = append([]string(nil), DefaultShowTimes...)
	}
	return Descriptor{Kind: KindMovieList, Movies: listing}
}

// TimePicker returns a show time picker descriptor.
func TimePicker(times ShowTimes) Descriptor {
	return Descriptor{Kind: KindTimePicker, Times: &times}
}

// SeatPicker returns a seat picker descriptor.
func SeatPicker(selection SeatSelection, seatPrice float64) Descriptor {
	return Descriptor{
		Kind:  KindSeatPicker,
		Seats: &selection,
		SeatMap: &SeatMap{
			Rows:        append([]string(nil), SeatRows...),
			SeatsPerRow: SeatsPerRow,
			SeatPrice:   seatPrice,
		},
	}
}

// Purchase returns a purchase confirmation descriptor.
func Purchase(summary PurchaseSummary, status PaymentStatus) Descriptor {
	return Descriptor{Kind: KindPurchase, Purchase: &PurchasePanel{Status: status, Summary: summary}}
}

// PaymentSucceeded returns the completed payment descriptor.
func PaymentSucceeded() Descriptor {
	return Descriptor{
		Kind: KindPaymentResult,
		Payment: &PaymentResult{
			Status:      PaymentCompleted,
			Headline:    "Payment Succeeded",
			Detail:      "Thanks for your purchase! You will receive your tickets by email shortly.",
			Suggestions: []string{"Show ticket", "Buy snacks"},
		},
	}
}

// UIMessage is a finalized UI handle as rebuilt from a persisted log.
type UIMessage struct {
	ID      string     `json:"id"`
	Display Descriptor `json:"display"`
}

// UIPartEvent is one streamed part of a UI handle.
type UIPartEvent struct {
	ID      string     `json:"id"`
	Display Descriptor `json:"display"`
	Done    bool       `json:"done"`
}

// StatusPartEvent is one streamed part of a payment status handle.
type StatusPartEvent struct {
	Status PaymentStatus `json:"status"`
	Done   bool          `json:"done"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
