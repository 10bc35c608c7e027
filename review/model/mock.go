package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// Use MockChatModel in tests to verify deliberation behavior without making
// actual LLM API calls. It provides configurable responses, call history
// tracking, error injection, and thread-safe operation.
//
// Example:
//
//	mock := &MockChatModel{
//	    Responses: []Response{
//	        {Text: `{"claims": ["c1"]}`},
//	        {Text: `{"findings": {"controls": "adequate"}}`},
//	    },
//	}
//	out, _ := mock.Chat(ctx, req)
//	// Returns the first response, then the second on the next call;
//	// the last response repeats once the list is exhausted.
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	Responses []Response

	// Err, if set, is returned by Chat instead of a response.
	Err error

	// ErrAfter, when > 0, makes Chat fail with Err only from call number
	// ErrAfter onward (1-indexed). Zero means Err applies to every call.
	ErrAfter int

	// Calls tracks the history of all Chat invocations.
	Calls []Request

	mu        sync.Mutex
	callIndex int
}

// Chat implements the ChatModel interface.
//
// Always records the call in Calls, regardless of success or failure.
func (m *MockChatModel) Chat(ctx context.Context, req Request) (Response, error) {
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.Err != nil && (m.ErrAfter == 0 || len(m.Calls) >= m.ErrAfter) {
		return Response{}, m.Err
	}

	if len(m.Responses) == 0 {
		return Response{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}

	return m.Responses[idx], nil
}

// Name implements the ChatModel interface.
func (m *MockChatModel) Name() string { return "mock" }

// Reset clears the call history and resets the response index.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
