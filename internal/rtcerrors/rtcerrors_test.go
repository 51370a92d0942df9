package rtcerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorMessagesContainContext(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want []string
	}{
		{"AgentStateError", &AgentStateError{Current: "Stopped", Attempted: "Play"}, []string{"Stopped", "Play"}},
		{"AgentConfigurationError", &AgentConfigurationError{Message: "missing BLOCK_NAME"}, []string{"missing BLOCK_NAME"}},
		{"PublicationError", &PublicationError{Message: "boom", Field: "Volume"}, []string{"boom", "Volume"}},
		{"ClaimBufferError", &ClaimBufferError{Stream: "status", Length: 64, MaxAttempts: 3}, []string{"status", "64", "3"}},
		{"PublicationBackPressureError", &PublicationBackPressureError{Stream: "status", MaxAttempts: 1}, []string{"status", "1"}},
		{"PublicationFailureError", &PublicationFailureError{Stream: "status", MaxAttempts: 1}, []string{"status", "1"}},
		{"StreamNotFoundError", &StreamNotFoundError{StreamName: "pub_data", StreamIndex: 3}, []string{"pub_data", "3"}},
		{"CommunicationNotInitializedError", &CommunicationNotInitializedError{Op: "publish"}, []string{"publish"}},
		{"PropertyNotFoundError", &PropertyNotFoundError{Name: "Volume"}, []string{"Volume"}},
		{"PropertyTypeError", &PropertyTypeError{Name: "Volume", Expected: "Float", Actual: "Int"}, []string{"Volume", "Float", "Int"}},
		{"PropertyAccessError", &PropertyAccessError{Name: "Volume", Mode: "write"}, []string{"Volume", "write"}},
		{"PropertyValidationError", &PropertyValidationError{Name: "Volume", Message: "must be positive"}, []string{"Volume", "must be positive"}},
		{"EnvironmentVariableError", &EnvironmentVariableError{Name: "BLOCK_ID"}, []string{"BLOCK_ID"}},
		{"TimerNotFoundError", &TimerNotFoundError{ID: 7}, []string{"7"}},
		{"InvalidTimerError", &InvalidTimerError{Reason: "negative delay"}, []string{"negative delay"}},
		{"TimerSchedulingError", &TimerSchedulingError{Reason: "heap full", DeadlineNs: 42}, []string{"heap full", "42"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg := c.err.Error()
			for _, want := range c.want {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want substring %q", msg, want)
				}
			}
		})
	}
}

func TestAgentCommunicationErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &AgentCommunicationError{Message: "publish failed", Cause: cause}

	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Error() = %q, want it to include the wrapped cause", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause via Unwrap")
	}
}

func TestAgentCommunicationErrorWithoutCause(t *testing.T) {
	err := &AgentCommunicationError{Message: "publish failed"}
	if err.Unwrap() != nil {
		t.Error("expected nil Unwrap when no cause was set")
	}
	if !strings.Contains(err.Error(), "publish failed") {
		t.Errorf("Error() = %q, want it to include the message", err.Error())
	}
}
