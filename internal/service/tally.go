package service

import (
	"context"
	"fmt"

	apperrors "github.com/gavelclass/interact-server-go/internal/errors"
	"github.com/gavelclass/interact-server-go/internal/model"
	"github.com/gavelclass/interact-server-go/internal/repository"
)

// Tally is the aggregated result summary for one poll: per-option counts in
// option order plus the number of distinct voters. It carries no per-voter
// identities; anonymity display rules live in the caller-facing layer.
type Tally struct {
	PollID      int64               `json:"pollId"`
	Question    string              `json:"question"`
	Type        model.PollType      `json:"type"`
	Anonymous   bool                `json:"anonymous"`
	Status      model.PollStatus    `json:"status"`
	Options     []model.OptionCount `json:"options"`
	TotalVoters int                 `json:"totalVoters"`
}

// resolveTally assembles a poll's tally. Shared by the poll operations and
// the snapshot assembler.
func resolveTally(ctx context.Context, polls repository.PollRepository, pollID int64) (*Tally, error) {
	poll, err := polls.FindByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("find poll: %w", err)
	}
	if poll == nil {
		return nil, apperrors.NotFound("Poll")
	}

	options, err := polls.OptionCounts(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("count options: %w", err)
	}

	voters, err := polls.CountDistinctVoters(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("count voters: %w", err)
	}

	return &Tally{
		PollID:      poll.ID,
		Question:    poll.Question,
		Type:        poll.Type,
		Anonymous:   poll.Anonymous,
		Status:      poll.Status,
		Options:     options,
		TotalVoters: voters,
	}, nil
}
