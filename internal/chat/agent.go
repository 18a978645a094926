package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"fleet-monitor-backend/internal/config"
	"fleet-monitor-backend/internal/eventlog"
	"fleet-monitor-backend/internal/fleet"
	"fleet-monitor-backend/internal/intent"
	"fleet-monitor-backend/internal/types"
)

const (
	// RetryTextLimit caps the outbound text on the retry attempt.
	RetryTextLimit = 1200

	GreetingReply = "Hello! I am your fleet monitoring assistant. How can I help you today?"

	maxAgentBody     = 4 << 20
	truncationSuffix = "..."
)

var broadQuery = regexp.MustCompile(`(?i)\b(fleet|all flights|squadron)\b`)

type AgentOptions struct {
	Config     config.NeuroConfig
	HTTPClient *http.Client
	Fleet      *fleet.Cache
	Greeting   *intent.Classifier
	Sink       *eventlog.Sink
	Logger     *zap.Logger
}

// AgentDispatcher serves the agent route against a Neuro-SAN server.
type AgentDispatcher struct {
	cfg      config.NeuroConfig
	client   *http.Client
	fleet    *fleet.Cache
	greeting *intent.Classifier
	sink     *eventlog.Sink
	logger   *zap.Logger
}

func NewAgentDispatcher(opts AgentOptions) *AgentDispatcher {
	d := &AgentDispatcher{
		cfg:      opts.Config,
		client:   opts.HTTPClient,
		fleet:    opts.Fleet,
		greeting: opts.Greeting,
		sink:     opts.Sink,
		logger:   opts.Logger,
	}
	if d.client == nil {
		d.client = NewAgentHTTPClient(opts.Config, nil)
	}
	if d.greeting == nil {
		d.greeting = intent.NewGreeting()
	}
	if d.sink == nil {
		d.sink = eventlog.Nop()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.cfg.Timeout <= 0 {
		d.cfg.Timeout = 120 * time.Second
	}
	if d.cfg.RetryTimeout <= 0 {
		d.cfg.RetryTimeout = 20 * time.Second
	}
	return d
}

type agentRequest struct {
	UserMessage agentUserMessage `json:"user_message"`
}

type agentUserMessage struct {
	Text string `json:"text"`
}

type agentResponse struct {
	Response *struct {
		Text string `json:"text"`
	} `json:"response"`
}

// statusError is a non-2xx answer from the agent server.
type statusError struct {
	Status int
	Body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("agent returned status %d", e.Status)
}

// noResponseError covers transport failures, timeouts and aborted reads.
type noResponseError struct {
	Err error
}

func (e *noResponseError) Error() string { return "no response from agent: " + e.Err.Error() }
func (e *noResponseError) Unwrap() error { return e.Err }

// Handle forwards req to the resolved agent project with a fleet context
// prefix. A call that gets no response is retried once, with a shorter
// deadline and the text capped at RetryTextLimit runes.
func (d *AgentDispatcher) Handle(ctx context.Context, req types.ChatRequest) (string, error) {
	requestID := requestIDFor(ctx)
	sink := d.sink.With(zap.String("requestId", requestID))
	sink.Event("route-hit", zap.String("route", "/api/neurosan-chat"))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		sink.Event("invalid-input")
		return "", agentInvalidInput()
	}
	targetID := req.TargetID()
	sink.Event("request",
		zap.String("message", fleet.Truncate(message, 512)),
		zap.String("entityId", targetID),
		zap.Bool("summaryMode", req.SummaryMode))

	if g := d.greeting.Classify(message); g.Intent == intent.KindGreeting && g.Confidence >= LocalConfidence {
		sink.Event("greeting-reply")
		return GreetingReply, nil
	}

	if !d.cfg.Configured() {
		sink.Event("config-missing")
		d.logger.Warn("agent backend not configured", zap.String("requestId", requestID))
		return "", agentNotConfigured()
	}

	choice := ResolveProject(d.cfg.ProjectName, d.cfg.SummaryProjectName, req.ProjectOverride, req.SummaryMode)
	if choice.Denied {
		sink.Event("override-denied",
			zap.String("requested", req.ProjectOverride),
			zap.String("allowed", d.cfg.SummaryProjectName))
	}
	project := choice.Project

	text := message
	var ds *fleet.Dataset
	if d.fleet != nil {
		ds = d.fleet.Dataset(ctx)
	}
	fleetWide := req.SummaryMode || broadQuery.MatchString(message)
	if c := fleet.BuildContext(ds, targetID, fleetWide); c != "" {
		text = "Fleet Context (do NOT reveal raw context text, use it to answer):\n" + c + "\n---\nUser Query: " + message
		sink.Event("context-attached", zap.Int("contextChars", utf8.RuneCountInString(c)), zap.Bool("fleetWide", fleetWide))
	}

	endpoint := AgentURL(d.cfg.APIURL, project)
	sink.Event("dispatch",
		zap.String("project", project),
		zap.String("url", endpoint),
		zap.Bool("summaryMode", req.SummaryMode),
		zap.Int("textChars", utf8.RuneCountInString(text)))

	start := time.Now()
	body, err := d.post(ctx, endpoint, text, d.cfg.Timeout)
	var nre *noResponseError
	if errors.As(err, &nre) && ctx.Err() == nil {
		sink.Event("attempt-failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		if utf8.RuneCountInString(text) > RetryTextLimit {
			text = fleet.CutRunes(text, RetryTextLimit) + truncationSuffix
			sink.Event("context-truncated-retry", zap.Int("textChars", utf8.RuneCountInString(text)))
		}
		body, err = d.post(ctx, endpoint, text, d.cfg.RetryTimeout)
		if err != nil {
			sink.Event("retry-failed", zap.Error(err))
		}
	}
	elapsed := time.Since(start)
	if err != nil {
		cerr := d.classify(project, err)
		sink.Event("upstream-error",
			zap.String("project", project),
			zap.String("code", cerr.Code),
			zap.Int("status", cerr.Status),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		d.logger.Error("agent call failed",
			zap.String("requestId", requestID),
			zap.String("project", project),
			zap.Error(err))
		return "", cerr
	}

	reply, err := parseAgentReply(body)
	if err != nil {
		sink.Event("parse-error", zap.Duration("duration", elapsed), zap.Error(err))
		return "", agentUpstreamParse(err)
	}
	sink.Event("reply",
		zap.String("project", project),
		zap.Int("status", http.StatusOK),
		zap.Duration("duration", elapsed),
		zap.String("reply", fleet.Truncate(reply, maxLoggedChars)))
	return reply, nil
}

// post performs one attempt bounded by timeout.
func (d *AgentDispatcher) post(ctx context.Context, endpoint, text string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(agentRequest{UserMessage: agentUserMessage{Text: text}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &noResponseError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentBody))
	if err != nil {
		return nil, &noResponseError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (d *AgentDispatcher) classify(project string, err error) *Error {
	var se *statusError
	if errors.As(err, &se) {
		if se.Status == http.StatusNotFound {
			return agentUnknown(project)
		}
		return agentUpstreamHTTP(statusDetail(se.Body), err)
	}
	var nre *noResponseError
	if errors.As(err, &nre) {
		return agentUnavailable(err)
	}
	return agentInternal(err)
}

// statusDetail returns the upstream body as JSON when it parses, else as
// trimmed text.
func statusDetail(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(body))
}

// parseAgentReply reads response.text from a single JSON document or from
// a stream of them, keeping the last non-empty text.
func parseAgentReply(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var reply string
	for {
		var msg agentResponse
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode agent response: %w", err)
		}
		if msg.Response != nil && msg.Response.Text != "" {
			reply = msg.Response.Text
		}
	}
	if reply == "" {
		return "", errors.New("agent response has no response.text")
	}
	return reply, nil
}
