package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/MPhong03/tdtu-admission-client/internal/model/chat"
)

var validate = validator.New()

// FeedbackInput is the visitor rating for one answered question.
type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Validate checks the rating scale before the input leaves the client.
func (in FeedbackInput) Validate() error {
	return validate.Struct(in)
}

type createFeedbackRequest struct {
	HistoryID string `json:"historyId"`
	FeedbackInput
}

// CreateFeedback attaches a new rating to a history item.
func (c *Client) CreateFeedback(ctx context.Context, historyID string, in FeedbackInput) (*chat.Feedback, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out chat.Feedback
	req := createFeedbackRequest{HistoryID: historyID, FeedbackInput: in}
	if err := c.do(ctx, http.MethodPost, "/feedbacks", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFeedback rewrites an existing rating.
func (c *Client) UpdateFeedback(ctx context.Context, feedbackID string, in FeedbackInput) (*chat.Feedback, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var out chat.Feedback
	if err := c.do(ctx, http.MethodPut, "/feedbacks/"+url.PathEscape(feedbackID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
