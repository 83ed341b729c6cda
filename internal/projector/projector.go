// Package projector rebuilds the UI sequence of a chat from its event log.
package projector

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
)

// Projector maps event logs to UI descriptors. Its output depends only on
// its input events, so reloading a chat never calls an external service.
type Projector struct {
	seatPrice float64
	logger    *logger.Logger
}

// New creates a projector. log may be nil.
func New(seatPrice float64, log *logger.Logger) *Projector {
	return &Projector{seatPrice: seatPrice, logger: log}
}

// Project is a convenience wrapper using the default seat price and no logging.
func Project(chatID string, events []model.Event) []model.UIMessage {
	return New(model.DefaultSeatPrice, nil).Project(chatID, events)
}

// Project drops system events and renders every remaining event. IDs are
// derived from the chat ID and the position among the remaining events.
func (p *Projector) Project(chatID string, events []model.Event) []model.UIMessage {
	out := make([]model.UIMessage, 0, len(events))
	for _, e := range events {
		if e.Role == model.RoleSystem {
			continue
		}
		out = append(out, model.UIMessage{
			ID:      fmt.Sprintf("%s-%d", chatID, len(out)),
			Display: p.describe(e),
		})
	}
	return out
}

func (p *Projector) describe(e model.Event) model.Descriptor {
	switch e.Role {
	case model.RoleUser:
		return model.UserMessage(e.Content)
	case model.RoleFunction:
		d, err := p.describeFunction(e)
		if err != nil {
			p.warn("unrenderable function event", e, err)
			return model.None()
		}
		return d
	default:
		return model.BotMessage(e.Content)
	}
}

func (p *Projector) describeFunction(e model.Event) (model.Descriptor, error) {
	switch e.Name {
	case model.FunctionShowMovies, model.FunctionSearchMovies:
		var movies []model.Movie
		if err := json.Unmarshal([]byte(e.Content), &movies); err != nil {
			return model.None(), err
		}
		return model.MovieList(movies), nil

	case model.FunctionShowTimes:
		var times model.ShowTimes
		if err := json.Unmarshal([]byte(e.Content), &times); err != nil {
			return model.None(), err
		}
		return model.TimePicker(times), nil

	case model.FunctionShowSeats, model.FunctionListStocks:
		var selection model.SeatSelection
		if err := json.Unmarshal([]byte(e.Content), &selection); err != nil {
			return model.None(), err
		}
		return model.SeatPicker(selection, p.seatPrice), nil

	case model.FunctionPurchaseTickets:
		var summary model.PurchaseSummary
		if err := json.Unmarshal([]byte(e.Content), &summary); err != nil {
			return model.None(), err
		}
		return model.Purchase(summary, model.PaymentRequiresConfirmation), nil
	}

	p.warn("unknown function event", e, nil)
	return model.None(), nil
}

func (p *Projector) warn(msg string, e model.Event, err error) {
	if p.logger == nil {
		return
	}
	fields := []zap.Field{zap.String("event_id", e.ID), zap.String("name", e.Name)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Warn(msg, fields...)
}
