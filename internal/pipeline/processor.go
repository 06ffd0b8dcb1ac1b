package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

// Computer runs one PDSI computation.
type Computer interface {
	Compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, error)
}

// RequestProcessor implements Processor: decode, compute, wrap the outcome
// in a Response envelope. Computation failures become failed responses so
// the requester always hears back; only undecodable messages are errors.
type RequestProcessor struct {
	computer Computer
	logger   *slog.Logger
}

// NewProcessor creates a RequestProcessor.
func NewProcessor(computer Computer, logger *slog.Logger) *RequestProcessor {
	return &RequestProcessor{computer: computer, logger: logger}
}

func (p *RequestProcessor) Process(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	req, err := domain.ParseRawMessage(raw)
	if err != nil {
		return domain.OutputMessage{}, err
	}

	result, err := p.computer.Compute(ctx, req)
	if ctx.Err() != nil {
		return domain.OutputMessage{}, fmt.Errorf("request %s interrupted: %w", req.ID, ctx.Err())
	}

	resp := domain.NewResponse(req.ID, result, err)
	p.logger.Info("request processed",
		"request_id", req.ID,
		"status", resp.Status,
		"error_kind", resp.ErrorKind,
		"offset", raw.Offset,
	)
	return domain.SerializeResponse(resp)
}
