package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"db-initializer/internal/config"
	"db-initializer/internal/models"
	"db-initializer/internal/request"
	"db-initializer/testutil/testbuilder"
)

func testTransportConfig() config.Transport {
	return config.Transport{
		MaxTries:        3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Breaker: config.Breaker{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 5,
		},
	}
}

func newTestInvoker(client LambdaAPI, cfg config.Transport) *LambdaInvoker {
	invoker := NewLambdaInvoker(client, cfg)
	// constant short intervals keep the tests fast
	invoker.retryOptFunc = func() []backoff.RetryOption {
		return []backoff.RetryOption{
			backoff.WithBackOff(&backoff.ConstantBackOff{Interval: time.Millisecond}),
			backoff.WithMaxTries(cfg.MaxTries),
		}
	}
	return invoker
}

func testDescriptor() models.RequestDescriptor {
	return request.BuildLifecycle("S", "mydb", "InitFunction", "3", "LabelingStack").OnCreate
}

func payloadMatcher(descriptor models.RequestDescriptor) interface{} {
	return mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return aws.ToString(in.FunctionName) == descriptor.TargetIdentifier &&
			string(in.Payload) == descriptor.SerializedPayload &&
			in.InvocationType == types.InvocationTypeRequestResponse
	})
}

func TestSubmit(t *testing.T) {
	t.Run("decodes the callback result", func(t *testing.T) {
		descriptor := testDescriptor()
		client := new(testbuilder.MockLambdaClient)
		client.On("Invoke", mock.Anything, payloadMatcher(descriptor)).
			Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"status":"OK","results":"host=h port=5432 username=u"}`)}, nil)

		result, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), descriptor)

		require.NoError(t, err)
		assert.Equal(t, models.NewOKResult("host=h port=5432 username=u"), *result)
		client.AssertNumberOfCalls(t, "Invoke", 1)
	})

	t.Run("an ERROR result is not retried", func(t *testing.T) {
		client := new(testbuilder.MockLambdaClient)
		client.On("Invoke", mock.Anything, mock.Anything).
			Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"status":"ERROR","err":{"message":"secret not found","detail":"secret_not_found"},"message":"Failed to fetch database credentials"}`)}, nil)

		result, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), testDescriptor())

		require.NoError(t, err)
		assert.Equal(t, models.StatusError, result.Status)
		assert.Equal(t, "secret_not_found", result.Err.Detail)
		client.AssertNumberOfCalls(t, "Invoke", 1)
	})

	t.Run("retries throttling until success", func(t *testing.T) {
		client := new(testbuilder.MockLambdaClient)
		client.On("Invoke", mock.Anything, mock.Anything).
			Return(nil, &types.TooManyRequestsException{Message: aws.String("Rate exceeded")}).Once()
		client.On("Invoke", mock.Anything, mock.Anything).
			Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"status":"OK","results":"Skip"}`)}, nil).Once()

		result, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), testDescriptor())

		require.NoError(t, err)
		assert.True(t, result.IsSkip())
		client.AssertNumberOfCalls(t, "Invoke", 2)
	})

	t.Run("retries function errors up to the limit", func(t *testing.T) {
		client := new(testbuilder.MockLambdaClient)
		client.On("Invoke", mock.Anything, mock.Anything).
			Return(&lambda.InvokeOutput{StatusCode: 200, FunctionError: aws.String("Unhandled"), Payload: []byte(`{"errorMessage":"timeout"}`)}, nil)

		_, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), testDescriptor())

		require.ErrorIs(t, err, ErrInvocationFailed)
		assert.Contains(t, err.Error(), "Unhandled")
		client.AssertNumberOfCalls(t, "Invoke", 3)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		for _, invokeErr := range []error{
			&types.ResourceNotFoundException{Message: aws.String("Function not found")},
			&types.InvalidRequestContentException{Message: aws.String("Could not parse request body")},
			&types.InvalidParameterValueException{Message: aws.String("bad")},
		} {
			client := new(testbuilder.MockLambdaClient)
			client.On("Invoke", mock.Anything, mock.Anything).Return(nil, invokeErr)

			_, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), testDescriptor())

			require.ErrorIs(t, err, ErrInvocationFailed)
			assert.ErrorIs(t, err, invokeErr)
			client.AssertNumberOfCalls(t, "Invoke", 1)
		}
	})

	t.Run("undecodable response is invalid", func(t *testing.T) {
		for _, payload := range []string{`not json`, `{"status":"MAYBE"}`, `{}`} {
			client := new(testbuilder.MockLambdaClient)
			client.On("Invoke", mock.Anything, mock.Anything).
				Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(payload)}, nil)

			_, err := newTestInvoker(client, testTransportConfig()).Submit(context.Background(), testDescriptor())

			require.ErrorIs(t, err, ErrInvalidResponse, payload)
			client.AssertNumberOfCalls(t, "Invoke", 1)
		}
	})

	t.Run("rejects invalid descriptors without calling", func(t *testing.T) {
		client := new(testbuilder.MockLambdaClient)
		invoker := newTestInvoker(client, testTransportConfig())

		_, err := invoker.Submit(context.Background(), models.RequestDescriptor{SerializedPayload: "{}"})
		require.ErrorIs(t, err, ErrInvalidDescriptor)

		_, err = invoker.Submit(context.Background(), models.RequestDescriptor{TargetIdentifier: "fn", SerializedPayload: "{"})
		require.ErrorIs(t, err, ErrInvalidDescriptor)

		client.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		client := new(testbuilder.MockLambdaClient)
		client.On("Invoke", mock.Anything, mock.Anything).
			Return(nil, &types.ServiceException{Message: aws.String("internal")})
		cfg := testTransportConfig()
		cfg.MaxTries = 100
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestInvoker(client, cfg).Submit(ctx, testDescriptor())

		require.ErrorIs(t, err, context.Canceled)
		client.AssertNumberOfCalls(t, "Invoke", 1)
	})
}

func TestSubmitCircuitBreaker(t *testing.T) {
	cfg := testTransportConfig()
	cfg.MaxTries = 1
	cfg.Breaker.FailureThreshold = 2

	client := new(testbuilder.MockLambdaClient)
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, &types.ServiceException{Message: aws.String("internal")})
	invoker := newTestInvoker(client, cfg)

	_, err1 := invoker.Submit(context.Background(), testDescriptor())
	_, err2 := invoker.Submit(context.Background(), testDescriptor())
	_, err3 := invoker.Submit(context.Background(), testDescriptor())

	assert.ErrorIs(t, err1, ErrInvocationFailed)
	assert.ErrorIs(t, err2, ErrInvocationFailed)
	assert.ErrorIs(t, err3, ErrTransportUnavailable)
	assert.ErrorIs(t, err3, gobreaker.ErrOpenState)
	client.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestSubmitCircuitBreakerRecovers(t *testing.T) {
	cfg := testTransportConfig()
	cfg.MaxTries = 1
	cfg.Breaker.FailureThreshold = 1
	cfg.Breaker.Timeout = 50 * time.Millisecond

	client := new(testbuilder.MockLambdaClient)
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, &types.ServiceException{Message: aws.String("internal")}).Once()
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"status":"OK","results":"Skip"}`)}, nil)
	invoker := newTestInvoker(client, cfg)

	_, err := invoker.Submit(context.Background(), testDescriptor())
	require.ErrorIs(t, err, ErrInvocationFailed)

	_, err = invoker.Submit(context.Background(), testDescriptor())
	require.ErrorIs(t, err, ErrTransportUnavailable)

	require.Eventually(t, func() bool {
		result, err := invoker.Submit(context.Background(), testDescriptor())
		return err == nil && result.IsSkip()
	}, time.Second, 20*time.Millisecond)
}

func TestNewBackoffStrategy(t *testing.T) {
	opts := newBackoffStrategy(testTransportConfig(), zerolog.Nop())

	calls := 0
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("always")
	}, opts...)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
