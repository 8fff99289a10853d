// Package transport submits request descriptors to the initializer function.
// Retries and the circuit breaker live here; the handler itself never retries.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"db-initializer/internal/config"
	"db-initializer/internal/models"
	"db-initializer/pkg/log"
)

var (
	ErrInvalidDescriptor    = errors.New("invalid request descriptor")
	ErrInvocationFailed     = errors.New("invocation failed")
	ErrTransportUnavailable = errors.New("invocation transport is unavailable")
	ErrInvalidResponse      = errors.New("invalid invocation response")
)

// LambdaAPI is the subset of the Lambda client the invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type LambdaInvoker struct {
	client         LambdaAPI
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   func() []backoff.RetryOption
	logger         zerolog.Logger
}

func NewLambdaInvoker(client LambdaAPI, cfg config.Transport) *LambdaInvoker {
	logger := log.Component("lambda_invoker")
	return &LambdaInvoker{
		client:         client,
		circuitBreaker: newCircuitBreaker(cfg.Breaker, logger),
		retryOptFunc: func() []backoff.RetryOption {
			return newBackoffStrategy(cfg, logger)
		},
		logger: logger,
	}
}

func newCircuitBreaker(cfg config.Breaker, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lambda_invoke",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

func newBackoffStrategy(cfg config.Transport, logger zerolog.Logger) []backoff.RetryOption {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = cfg.InitialInterval
	strategy.MaxInterval = cfg.MaxInterval

	return []backoff.RetryOption{
		backoff.WithBackOff(strategy),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", next).Msg("Invocation failed, retrying")
		}),
	}
}

// Submit invokes the descriptor's target synchronously and decodes the
// callback result. An ERROR result is a successful submission.
func (i *LambdaInvoker) Submit(ctx context.Context, descriptor models.RequestDescriptor) (*models.CallbackResult, error) {
	logger := i.logger.With().
		Str("event", "submit").
		Str("target", descriptor.TargetIdentifier).
		Str("physical_resource_id", descriptor.PhysicalResourceID).
		Logger()

	if descriptor.TargetIdentifier == "" {
		return nil, fmt.Errorf("%w: target identifier is empty", ErrInvalidDescriptor)
	}
	if !json.Valid([]byte(descriptor.SerializedPayload)) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidDescriptor)
	}

	operation := func() (*models.CallbackResult, error) {
		out, err := i.circuitBreaker.Execute(func() (interface{}, error) {
			return i.invoke(ctx, descriptor)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrTransportUnavailable, err))
			}
			return nil, err
		}
		return out.(*models.CallbackResult), nil
	}

	logger.Debug().Msg("Submitting request descriptor")
	result, err := backoff.Retry(ctx, operation, i.retryOptFunc()...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to submit request descriptor")
		return nil, err
	}

	logger.Info().Str("status", result.Status.String()).Msg("Request descriptor submitted")
	return result, nil
}

func (i *LambdaInvoker) invoke(ctx context.Context, descriptor models.RequestDescriptor) (*models.CallbackResult, error) {
	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(descriptor.TargetIdentifier),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        []byte(descriptor.SerializedPayload),
	})
	if err != nil {
		if isPermanentInvokeError(err) {
			return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrInvocationFailed, err))
		}
		return nil, fmt.Errorf("%w: %w", ErrInvocationFailed, err)
	}

	if out.FunctionError != nil {
		return nil, fmt.Errorf("%w: function error %s: %s", ErrInvocationFailed, aws.ToString(out.FunctionError), string(out.Payload))
	}

	var result models.CallbackResult
	if err := json.Unmarshal(out.Payload, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrInvalidResponse, err))
	}
	if result.Status != models.StatusOK && result.Status != models.StatusError {
		return nil, backoff.Permanent(fmt.Errorf("%w: unexpected status %q", ErrInvalidResponse, result.Status))
	}
	return &result, nil
}

func isPermanentInvokeError(err error) bool {
	var (
		notFound       *types.ResourceNotFoundException
		invalidContent *types.InvalidRequestContentException
		invalidParam   *types.InvalidParameterValueException
		tooLarge       *types.RequestTooLargeException
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &invalidContent) ||
		errors.As(err, &invalidParam) ||
		errors.As(err, &tooLarge)
}
