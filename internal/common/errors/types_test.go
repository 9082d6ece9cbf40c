package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: InputError("Column Award Date not found in data"),
			want:     "input: Column Award Date not found in data",
		},
		{
			name:     "error with code",
			appError: ConfigError("bad redis db").WithCode("CFG001"),
			want:     "config: bad redis db: code=CFG001",
		},
		{
			name:     "error with cause",
			appError: CacheBackendError("hget", errors.New("connection refused")),
			want:     "cache_backend: cache backend hget failed: cause=connection refused",
		},
		{
			name: "context keys are sorted",
			appError: ValidationError("bad value").
				WithContext("value", "x").
				WithContext("column", "Amount Awarded"),
			want: "validation: bad value: context={column=Amount Awarded, value=x}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := LookupError("postcode", "SW1A 1AA", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, NotFoundError("dataset").Unwrap())
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, "dataset not found", NotFoundError("dataset").Message)
	assert.Equal(t, "timeout during enrich", TimeoutError("enrich").Message)
	assert.Equal(t, "organisation lookup failed for GB-CHC-1", LookupError("organisation", "GB-CHC-1", nil).Message)
	assert.Equal(t, ErrTypeInternal, InternalError("x", nil).Type)
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"matching type", InputError("bad"), ErrTypeInput, true},
		{"non-matching type", InputError("bad"), ErrTypeCacheBackend, false},
		{"wrapped", fmt.Errorf("stage failed: %w", CacheBackendError("hset", nil)), ErrTypeCacheBackend, true},
		{"non-app error", errors.New("plain"), ErrTypeInput, false},
		{"nil error", nil, ErrTypeInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrTypeLookup, GetType(fmt.Errorf("wrap: %w", LookupError("company", "1", nil))))
}

func TestUserMessage(t *testing.T) {
	err := fmt.Errorf("stage 3: %w", InputError("Column Amount Awarded not found in data"))
	assert.Equal(t, "Column Amount Awarded not found in data", UserMessage(err))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Equal(t, "", UserMessage(nil))
}
