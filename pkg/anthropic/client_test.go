package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comps-intel/pkg/llm"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestGenerator_Generate(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreateMessage", ctx, mock.MatchedBy(func(req MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 4096 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user" &&
			req.Messages[0].Content == "extract this"
	})).Return(&MessageResponse{
		ID: "msg_1",
		Content: []ContentBlock{
			{Type: "text", Text: `{"transactions": `},
			{Type: "tool_use"},
			{Type: "text", Text: `[]}`},
		},
		Usage: TokenUsage{InputTokens: 10, OutputTokens: 5},
	}, nil)

	g := NewGenerator(mc, 4096)
	out, err := g.Generate(ctx, "extract this", "claude-haiku-4-5-20251001")
	require.NoError(t, err)
	assert.Equal(t, `{"transactions": []}`, out)
	mc.AssertExpectations(t)
}

func TestGenerator_PassesClassifiedError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreateMessage", ctx, mock.Anything).
		Return(nil, llm.NewError(provider, 429, "rate_limit_error", errors.New("slow down")))

	_, err := NewGenerator(mc, 0).Generate(ctx, "p", "m")
	require.Error(t, err)
	assert.Equal(t, llm.KindRateLimited, llm.KindOf(err))
}

func TestGenerator_EmptyText(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("CreateMessage", ctx, mock.Anything).Return(&MessageResponse{}, nil)

	_, err := NewGenerator(mc, 0).Generate(ctx, "p", "m")
	require.Error(t, err)
	assert.Equal(t, llm.KindOther, llm.KindOf(err))
}

func TestNewGenerator_DefaultMaxTokens(t *testing.T) {
	g := NewGenerator(new(MockClient), 0)
	assert.Equal(t, int64(8192), g.maxTokens)
}

func TestToSDKMessages(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
		{Role: "system?", Content: "x"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
	assert.InDelta(t, 18.00, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 1, OutputTokens: 1}.LogCost("claude-haiku-4-5-20251001")
	})
}
