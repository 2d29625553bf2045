// Package analyzer scores inbound mail for spam likelihood by driving
// a conversation backend, one session per batch, two round trips per
// email (probability, then category).
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/adapters/cache"
	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/utils"
	"github.com/mikey/llm-chat-client/internal/whitelist"
)

// analyzerUserID owns the batch's conversation session.
const analyzerUserID = "spam-detector"

const probabilityPromptFormat = `You are a spam detection expert. Analyze the following email and determine the probability that it is spam.

From: %s
Subject: %s
Body:
%s

Return ONLY a number between 0 and 100 representing the spam probability, with no other text.`

const categoryPromptFormat = `Classify the following email into a single spam category such as Phishing, Marketing, Scam, or Business.

From: %s
Subject: %s
Body:
%s

Return ONLY the category name, with no other text.`

// Email is the opaque mail record handed in by an inbox source.
type Email struct {
	ID      string
	Subject string
	Sender  string
	Date    string
	Body    string
}

// Result is one scored email.
type Result struct {
	EmailID         string
	Subject         string
	Sender          string
	SpamProbability float64
	Category        string
	Timestamp       time.Time
}

// Service runs spam analysis batches.
type Service struct {
	client       core.ConversationClient
	cache        cache.Repository
	whitelist    *whitelist.Checker
	text         *utils.TextProcessor
	logger       *zap.Logger
	threshold    float64
	cacheEnabled bool
	cacheTTL     time.Duration
	maxBodySize  int
}

// NewService wires an analyzer over a conversation backend.
func NewService(
	client core.ConversationClient,
	cacheRepo cache.Repository,
	checker *whitelist.Checker,
	text *utils.TextProcessor,
	logger *zap.Logger,
	threshold float64,
	cacheEnabled bool,
	cacheTTL time.Duration,
	maxBodySize int,
) *Service {
	return &Service{
		client:       client,
		cache:        cacheRepo,
		whitelist:    checker,
		text:         text,
		logger:       logger,
		threshold:    threshold,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		maxBodySize:  maxBodySize,
	}
}

// Threshold returns the spam/safe split point.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// AnalyzeBatch scores every email over a single conversation session.
// On a round-trip failure it returns the results gathered so far along
// with the error. The session is always ended and its usage logged.
func (s *Service) AnalyzeBatch(ctx context.Context, emails []Email) ([]Result, error) {
	sessionID, err := s.client.StartNewSession(analyzerUserID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to start analysis session: %w", err)
	}
	defer s.closeSession(sessionID)

	results := make([]Result, 0, len(emails))
	for _, email := range emails {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("analysis interrupted: %w", err)
		}
		result, err := s.analyzeOne(ctx, sessionID, email)
		if err != nil {
			return results, fmt.Errorf("failed to analyze email %s: %w", email.ID, err)
		}
		s.logger.Info("analyzed email",
			zap.String("email_id", email.ID),
			zap.Float64("spam_probability", result.SpamProbability),
			zap.String("category", result.Category))
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) closeSession(sessionID string) {
	if metrics, err := s.client.GetUsageMetrics(sessionID); err == nil {
		s.logger.Info("analysis session usage",
			zap.String("session_id", sessionID),
			zap.Int("token_count", metrics.TokenCount),
			zap.Int("api_calls", metrics.APICalls),
			zap.Float64("cost_estimate", metrics.CostEstimate))
	}
	s.client.EndSession(sessionID)
}

func (s *Service) analyzeOne(ctx context.Context, sessionID string, email Email) (Result, error) {
	now := time.Now()
	result := Result{
		EmailID:   email.ID,
		Subject:   email.Subject,
		Sender:    email.Sender,
		Timestamp: now,
	}

	if s.whitelist.IsWhitelisted(email.Sender) {
		result.Category = "Whitelisted"
		return result, nil
	}

	sender := whitelist.CanonicalAddress(email.Sender)
	if s.cacheEnabled {
		entry, err := s.cache.Get(ctx, sender)
		switch {
		case err == nil:
			s.logger.Debug("using cached verdict",
				zap.String("sender", sender),
				zap.Float64("spam_probability", entry.SpamProbability))
			result.SpamProbability = entry.SpamProbability
			result.Category = entry.Category
			return result, nil
		case !errors.Is(err, cache.ErrNotFound):
			s.logger.Warn("cache lookup failed", zap.String("sender", sender), zap.Error(err))
		}
	}

	body := s.text.ProcessText(email.Body, s.maxBodySize)

	probability, err := s.client.SendMessage(ctx, sessionID,
		fmt.Sprintf(probabilityPromptFormat, email.Sender, email.Subject, body), nil)
	if err != nil {
		return Result{}, err
	}
	result.SpamProbability = s.parseScore(email.ID, probability.Response)

	category, err := s.client.SendMessage(ctx, sessionID,
		fmt.Sprintf(categoryPromptFormat, email.Sender, email.Subject, body), nil)
	if err != nil {
		return Result{}, err
	}
	result.Category = parseCategory(category.Response)

	if s.cacheEnabled {
		entry := &cache.Entry{
			SenderEmail:     sender,
			SpamProbability: result.SpamProbability,
			Category:        result.Category,
			LastSeen:        now,
			ExpiresAt:       now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Warn("failed to cache verdict", zap.String("sender", sender), zap.Error(err))
		}
	}
	return result, nil
}

// parseScore reads the probability reply. Replies that are not a bare
// number score 0 rather than failing the batch.
func (s *Service) parseScore(emailID, reply string) float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		s.logger.Warn("unparseable probability reply",
			zap.String("email_id", emailID),
			zap.String("reply", reply))
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// parseCategory reduces the category reply to a single clean label.
func parseCategory(reply string) string {
	category := strings.TrimSpace(reply)
	if i := strings.IndexByte(category, '\n'); i >= 0 {
		category = strings.TrimSpace(category[:i])
	}
	category = strings.TrimSuffix(category, ".")
	if category == "" {
		return "Unknown"
	}
	return category
}
