// Package threatmodel composes prompt construction, the retrying reasoning
// client and reply normalization into a single cancellable Analyze call.
package threatmodel

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/prompt"
)

// Service is safe for concurrent use; calls share no mutable state.
type Service struct {
	client     domain.ReasoningClient
	normalizer Normalizer
	redact     bool
	log        logrus.FieldLogger
}

type Option func(*Service)

// WithIDGenerator replaces the UUID threat id source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) { s.normalizer.IDs = ids }
}

// WithSecretRedaction masks recognised credentials in artifacts before they are
// sent to the reasoning service.
func WithSecretRedaction(on bool) Option {
	return func(s *Service) { s.redact = on }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(client domain.ReasoningClient, opts ...Option) *Service {
	s := &Service{
		client:     client,
		normalizer: Normalizer{IDs: UUIDGenerator{}},
		log:        logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze builds the prompt, calls the reasoning service and normalizes the
// reply. Errors are one of domain.ErrCanceled, domain.ErrTransportFailure or
// domain.ErrMalformedReply; no partial result is ever returned.
func (s *Service) Analyze(ctx context.Context, artifacts []domain.ArtifactRecord) (*domain.AnalysisResult, error) {
	log := s.log.WithField("artifacts", len(artifacts))

	if s.redact {
		var found []prompt.Redaction
		artifacts, found = prompt.Redact(artifacts)
		for _, r := range found {
			log.WithFields(logrus.Fields{"artifact": r.Artifact, "kind": r.Kind, "count": r.Count}).
				Warn("redacted secret before analysis")
		}
	}

	req := domain.AnalysisRequest{
		Prompt: prompt.Build(artifacts),
		Schema: prompt.Contract(),
	}

	payload, err := s.client.Complete(ctx, req)
	if err != nil {
		s.logFailure(log, err)
		return nil, err
	}

	result, err := s.normalizer.Normalize(payload)
	if err != nil {
		s.logFailure(log, err)
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"assets":  len(result.Assets),
		"threats": len(result.Threats),
	}).Info("threat model generated")
	return result, nil
}

func (s *Service) logFailure(log logrus.FieldLogger, err error) {
	var (
		te *domain.TransportError
		me *domain.MalformedReplyError
	)
	switch {
	case errors.Is(err, domain.ErrCanceled):
		log.Debug("analysis canceled")
	case errors.As(err, &me):
		log.WithField("reason", me.Reason).WithError(err).Error("reasoning service reply violates contract")
	case errors.As(err, &te):
		log.WithFields(logrus.Fields{
			"status":   te.StatusCode,
			"attempts": te.Attempts,
		}).WithError(err).Error("reasoning service unavailable")
	default:
		log.WithError(err).Error("analysis failed")
	}
}
