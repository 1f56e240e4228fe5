package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Intent is the oracle's classification of an utterance
type Intent string

const (
	IntentAddStore     Intent = "add_store"
	IntentConfirm      Intent = "confirm"
	IntentCancel       Intent = "cancel"
	IntentCreateAnyway Intent = "create_anyway"
	IntentChat         Intent = "chat"
)

// ExtractedIntent is the oracle's structured reading of one utterance. The
// engine performs no NLP of its own; whatever the oracle did not extract
// stays unfilled.
type ExtractedIntent struct {
	Intent     Intent            `json:"intent"`
	Fields     map[string]string `json:"fields"`
	Confidence float64           `json:"confidence"`
}

// ConversationContext gives the oracle enough state to disambiguate short
// replies ("yes", "the second one") without the engine shipping transcripts.
type ConversationContext struct {
	SessionID    string       `json:"session_id"`
	State        SessionState `json:"state"`
	FilledSlots  []string     `json:"filled_slots"`
	MissingSlots []string     `json:"missing_slots"`
}

// IntentExtractor is the external NLU oracle.
type IntentExtractor interface {
	Extract(ctx context.Context, message string, convCtx ConversationContext) (*ExtractedIntent, error)
}

// HTTPOracle calls an external intent-extraction endpoint.
type HTTPOracle struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPOracle(url string, logger *zap.Logger) *HTTPOracle {
	return &HTTPOracle{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type oracleRequest struct {
	Message string              `json:"message"`
	Context ConversationContext `json:"context"`
}

func (o *HTTPOracle) Extract(ctx context.Context, message string, convCtx ConversationContext) (*ExtractedIntent, error) {
	body, err := json.Marshal(oracleRequest{Message: message, Context: convCtx})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dialogue: intent oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dialogue: intent oracle returned %d", resp.StatusCode)
	}

	var extracted ExtractedIntent
	if err := json.NewDecoder(resp.Body).Decode(&extracted); err != nil {
		return nil, fmt.Errorf("dialogue: decode oracle response: %w", err)
	}
	if extracted.Intent == "" {
		extracted.Intent = IntentChat
	}
	return &extracted, nil
}
