package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/config"
	"github.com/appforge-inc/forge-engine/pkg/llm"
	"github.com/appforge-inc/forge-engine/pkg/logging"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/prompts"
	"github.com/appforge-inc/forge-engine/pkg/repositories"
)

// Superficial Gemini credential format: fixed prefix and a minimum length.
// Catches pasted fragments before any network call is made.
const (
	geminiKeyPrefix = "AIza"
	geminiKeyMinLen = 30
)

// GenerationService turns an app configuration (plus an optional free-form
// prompt) into generated application code, absorbing upstream unreliability.
type GenerationService interface {
	// Generate returns the extracted application code or a classified
	// *llm.Error. It performs no persistence; versioning sits above it.
	Generate(ctx context.Context, cfg *models.AppConfig, customPrompt string) (string, error)
}

type generationService struct {
	factory  llm.GeneratorFactory
	cache    GenerationCache
	settings repositories.SettingsRepository
	cfg      *config.GenerationConfig
	logger   *zap.Logger

	// sleep is replaceable in tests so backoff paths run instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerationService creates a new generation service.
func NewGenerationService(
	factory llm.GeneratorFactory,
	cache GenerationCache,
	settings repositories.SettingsRepository,
	cfg *config.GenerationConfig,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		factory:  factory,
		cache:    cache,
		settings: settings,
		cfg:      cfg,
		logger:   logger.Named("generation"),
		sleep:    sleepCtx,
	}
}

func (s *generationService) Generate(ctx context.Context, cfg *models.AppConfig, customPrompt string) (string, error) {
	if err := s.validateCredential(); err != nil {
		return "", err
	}

	// Cache is a pure function of the config; a free-form override prompt is
	// not part of the config, so it always bypasses the cache.
	cacheKey := ""
	if customPrompt == "" {
		cacheKey = cfg.CacheKey()
		if code, ok := s.cache.Get(ctx, cacheKey); ok {
			s.logger.Info("generation served from cache", zap.String("key", cacheKey[:12]))
			return code, nil
		}
	}

	defaultModel := s.defaultModel(ctx)
	generator, err := s.factory.Create(defaultModel)
	if err != nil {
		return "", llm.NewError(llm.ErrorTypeNotConfigured, "failed to create generator", false, err)
	}

	// Minimal availability probe. A quota signal here means the retry loop
	// would only burn its budget, so fail before entering it. Other probe
	// failures are left for the loop to classify on a real request.
	if err := generator.CheckQuota(ctx); err != nil {
		if llm.IsQuota(err) {
			s.logger.Warn("quota exhausted before generation",
				zap.String("model", defaultModel))
			return "", &llm.Error{
				Type:    llm.ErrorTypeQuotaExhausted,
				Message: "upstream quota exhausted",
				Cause:   err,
				Model:   defaultModel,
			}
		}
		s.logger.Warn("quota probe inconclusive, continuing",
			zap.String("error", logging.SanitizeError(err)))
	}

	prompt := customPrompt
	if prompt == "" {
		prompt = prompts.BuildGenerationPrompt(cfg)
	}
	mode := prompts.ResponsivenessMode(cfg, customPrompt)
	system := prompts.SystemInstruction(mode)

	candidates := s.candidateModels(defaultModel)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		s.logger.Info("generation attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.cfg.MaxAttempts),
			zap.String("mode", string(mode)))

		text, usedModel, err := s.generateWithFallback(ctx, generator, candidates, prompt, system)
		if err == nil {
			code := llm.ExtractHTML(text)
			if cacheKey != "" {
				s.cache.Set(ctx, cacheKey, code)
			}
			if usedModel != defaultModel {
				s.persistDefaultModel(ctx, usedModel)
			}
			s.logger.Info("generation succeeded",
				zap.Int("attempt", attempt),
				zap.String("model", usedModel),
				zap.String("code_preview", logging.TruncateCode(code)))
			return code, nil
		}

		lastErr = err

		if llm.IsQuota(err) {
			hint, ok := llm.RetryDelayHint(err)
			if ok && hint <= s.cfg.MaxRetryHint() && attempt < s.cfg.MaxAttempts {
				s.logger.Info("honoring server retry hint",
					zap.Duration("delay", hint),
					zap.Int("attempt", attempt))
				if serr := s.sleep(ctx, hint); serr != nil {
					return "", serr
				}
				continue
			}
			return "", &llm.Error{
				Type:    llm.ErrorTypeQuotaExhausted,
				Message: fmt.Sprintf("quota exceeded across %d attempt(s) and %d model(s)", attempt, len(candidates)),
				Cause:   err,
			}
		}

		var genErr *llm.Error
		if errors.As(err, &genErr) && !genErr.Retryable {
			// Malformed requests, revoked credentials: retrying cannot help.
			return "", err
		}

		if attempt < s.cfg.MaxAttempts {
			backoff := time.Duration(attempt) * s.cfg.BackoffUnit()
			s.logger.Warn("generation attempt failed, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.String("error", logging.SanitizeError(err)))
			if serr := s.sleep(ctx, backoff); serr != nil {
				return "", serr
			}
		}
	}

	classified := llm.ClassifyError(lastErr)
	return "", llm.NewError(classified.Type,
		fmt.Sprintf("generation failed after %d attempts", s.cfg.MaxAttempts),
		false, lastErr)
}

// generateWithFallback walks the candidate model list and returns the first
// success along with the model that produced it. Only quota-classified
// failures advance to the next candidate; any other failure stops the walk so
// the caller's per-class handling applies. The walk itself has no side
// effects; persisting a fallback model as the new default happens afterwards.
func (s *generationService) generateWithFallback(
	ctx context.Context,
	generator llm.CodeGenerator,
	candidates []string,
	prompt, system string,
) (string, string, error) {
	var lastErr error
	for i, model := range candidates {
		text, err := generator.WithModel(model).GenerateCode(ctx, prompt, system)
		if err == nil {
			return text, model, nil
		}
		lastErr = err

		if !llm.IsQuota(err) {
			return "", model, err
		}
		if i < len(candidates)-1 {
			s.logger.Warn("model quota-limited, trying fallback",
				zap.String("model", model),
				zap.String("next", candidates[i+1]))
		}
	}
	return "", "", lastErr
}

func (s *generationService) validateCredential() error {
	key := s.cfg.APIKey
	if key == "" {
		return llm.NewError(llm.ErrorTypeNotConfigured,
			"generation API key is not configured", false, nil)
	}
	if s.cfg.Provider == llm.ProviderGemini {
		if !strings.HasPrefix(key, geminiKeyPrefix) || len(key) < geminiKeyMinLen {
			return llm.NewError(llm.ErrorTypeBadCredential,
				"generation API key is malformed", false, nil)
		}
	}
	return nil
}

// defaultModel resolves the working model: a persisted setting from an
// earlier fallback takes precedence over the configured primary.
func (s *generationService) defaultModel(ctx context.Context) string {
	model, err := s.settings.Get(ctx, models.SettingDefaultModel)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("failed to read default model setting", zap.Error(err))
		}
		return s.cfg.Model
	}
	if model == "" {
		return s.cfg.Model
	}
	return model
}

// candidateModels returns the default model followed by the configured
// fallbacks, deduplicated.
func (s *generationService) candidateModels(defaultModel string) []string {
	candidates := []string{defaultModel}
	for _, m := range s.cfg.FallbackModels {
		if m != defaultModel {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

func (s *generationService) persistDefaultModel(ctx context.Context, model string) {
	if err := s.settings.Set(ctx, models.SettingDefaultModel, model); err != nil {
		// The generation itself succeeded; losing the sticky model only
		// costs a redundant fallback walk next time.
		s.logger.Warn("failed to persist fallback model as default",
			zap.String("model", model), zap.Error(err))
		return
	}
	s.logger.Info("fallback model persisted as new default", zap.String("model", model))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
