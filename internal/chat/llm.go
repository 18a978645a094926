package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fleet-monitor-backend/internal/config"
	"fleet-monitor-backend/internal/eventlog"
	"fleet-monitor-backend/internal/fleet"
	"fleet-monitor-backend/internal/intent"
	"fleet-monitor-backend/internal/prompts"
	"fleet-monitor-backend/internal/types"
)

const (
	// LocalConfidence is the minimum summary confidence for answering
	// from local data without calling the backend.
	LocalConfidence = 0.7

	llmTemperature     = 0.2
	llmMaxTokens       = 512
	llmMaxTokensBypass = 800
	maxLoggedChars     = 1000
)

const fallbackPrompt = "You are a fleet monitoring assistant. Answer using only the dataset provided below and say so when it does not contain the answer."

const squadronInstruction = "When the user asks for overall or squadron-level health, provide a concise " +
	"squadron-level summary first using only the provided dataset. If the user later requests " +
	"per-flight details, provide them on follow-up. Keep the initial reply short and factual."

// Dispatcher turns one chat request into a reply.
type Dispatcher interface {
	Handle(ctx context.Context, req types.ChatRequest) (string, error)
}

// requestIDFor returns the request id carried by ctx, minting one for calls
// that did not come through the HTTP middleware.
func requestIDFor(ctx context.Context) string {
	if id := eventlog.RequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

type LLMOptions struct {
	Config     config.AzureConfig
	HTTPClient *http.Client
	Fleet      *fleet.Cache
	Prompts    *prompts.Set
	Classifier *intent.Classifier
	Sink       *eventlog.Sink
	Logger     *zap.Logger
}

// LLMDispatcher serves the generic-LLM route against an Azure OpenAI
// chat-completions deployment.
type LLMDispatcher struct {
	cfg        config.AzureConfig
	client     *openai.Client
	fleet      *fleet.Cache
	prompts    *prompts.Set
	classifier *intent.Classifier
	sink       *eventlog.Sink
	logger     *zap.Logger
}

func NewLLMDispatcher(opts LLMOptions) *LLMDispatcher {
	d := &LLMDispatcher{
		cfg:        opts.Config,
		fleet:      opts.Fleet,
		prompts:    opts.Prompts,
		classifier: opts.Classifier,
		sink:       opts.Sink,
		logger:     opts.Logger,
	}
	if d.classifier == nil {
		d.classifier = intent.NewFleetSummary(nil)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.sink == nil {
		d.sink = eventlog.Nop()
	}
	if opts.Config.Configured() {
		d.client = newAzureClient(opts.Config, opts.HTTPClient)
	}
	return d
}

func newAzureClient(cfg config.AzureConfig, httpClient *http.Client) *openai.Client {
	oc := openai.DefaultAzureConfig(cfg.Key, cfg.Endpoint)
	if cfg.APIVersion != "" {
		oc.APIVersion = cfg.APIVersion
	}
	// deployment names are used verbatim
	oc.AzureModelMapperFunc = func(model string) string { return model }
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	oc.HTTPClient = httpClient
	return openai.NewClientWithConfig(oc)
}

// Handle answers req from local data when it is a confident aggregate
// question, otherwise forwards it with a fleet-grounded system prompt.
func (d *LLMDispatcher) Handle(ctx context.Context, req types.ChatRequest) (string, error) {
	requestID := requestIDFor(ctx)
	sink := d.sink.With(zap.String("requestId", requestID))
	targetID := req.TargetID()
	sink.Event("route-hit", zap.String("route", "/api/ai-chat"))

	message := strings.TrimSpace(req.Message)
	if message == "" {
		sink.Event("invalid-input")
		return "", llmInvalidInput()
	}
	sink.Event("request",
		zap.String("message", fleet.Truncate(message, 512)),
		zap.String("entityId", targetID),
		zap.String("promptId", req.PromptID),
		zap.Bool("bypassLocal", req.BypassLocal))

	var ds *fleet.Dataset
	if d.fleet != nil {
		ds = d.fleet.Dataset(ctx)
	}
	var entity *fleet.Entity
	if detail, ok := ds.Detail(targetID); ok {
		entity = &detail
	}

	cls := d.classifier.Classify(message)
	sink.Event("classification",
		zap.String("intent", string(cls.Intent)),
		zap.Float64("confidence", cls.Confidence),
		zap.Bool("entityMention", cls.EntityMention))

	if !req.BypassLocal && cls.Intent == intent.KindSummary && cls.Confidence >= LocalConfidence {
		reply := LocalSummaryReply(ds, entity)
		sink.Event("local-reply", zap.String("reply", fleet.Truncate(reply, maxLoggedChars)))
		d.logger.Debug("answered from local data", zap.String("requestId", requestID))
		return reply, nil
	}

	messages := d.buildMessages(ds, entity, targetID, cls, req.PromptID, req.History, message)

	if d.client == nil {
		sink.Event("config-missing")
		d.logger.Warn("generic LLM backend not configured", zap.String("requestId", requestID))
		return "", llmNotConfigured()
	}

	maxTokens := llmMaxTokens
	if req.BypassLocal {
		maxTokens = llmMaxTokensBypass
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	sink.Event("dispatch",
		zap.String("deployment", d.cfg.Deployment),
		zap.Int("messages", len(messages)),
		zap.Int("maxTokens", maxTokens))
	start := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.cfg.Deployment,
		Messages:    messages,
		Temperature: llmTemperature,
		MaxTokens:   maxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		cerr := classifyLLMError(err)
		sink.Event("upstream-error",
			zap.String("code", cerr.Code),
			zap.Int("status", cerr.Status),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		d.logger.Error("generic LLM call failed", zap.String("requestId", requestID), zap.Error(err))
		return "", cerr
	}
	if len(resp.Choices) == 0 {
		err := errors.New("response has no choices")
		sink.Event("parse-error", zap.Duration("duration", elapsed), zap.Error(err))
		return "", llmUpstreamParse(err)
	}

	reply := resp.Choices[0].Message.Content
	sink.Event("reply",
		zap.Int("status", http.StatusOK),
		zap.Duration("duration", elapsed),
		zap.String("reply", fleet.Truncate(reply, maxLoggedChars)))
	return reply, nil
}

func (d *LLMDispatcher) buildMessages(ds *fleet.Dataset, entity *fleet.Entity, targetID string, cls intent.Result, promptID string, history []types.HistoryMessage, message string) []openai.ChatCompletionMessage {
	var sys strings.Builder
	if cls.Intent == intent.KindSummary {
		sys.WriteString(squadronInstruction)
		sys.WriteString("\n\n")
	}
	base := d.prompts.Lookup(promptID)
	if base == "" {
		base = fallbackPrompt
	}
	sys.WriteString(base)

	s := fleet.ComputeFleetSummary(ds)
	if entity != nil {
		if c := fleet.BuildContext(ds, targetID, false); c != "" {
			sys.WriteString("\n\nFleet Context:\n")
			sys.WriteString(c)
		}
	} else {
		if c := fleet.BuildContext(ds, "", true); c != "" {
			sys.WriteString("\n\nFleet Context:\n")
			sys.WriteString(c)
		}
		fmt.Fprintf(&sys, "\n\nSquadron summary: total=%d; allGood=%d; warnings=%d; critical=%d; operational=%d (%d%%); outOfService=%d",
			s.Total, s.CountGood, s.CountWarning, s.CountCritical, s.OperationalCount, s.OperationalPct, s.OutOfServiceCount)
	}
	if cls.Confidence < LocalConfidence {
		if entity != nil {
			es := fleet.ComputeEntitySummary(*entity)
			fmt.Fprintf(&sys, "\n\nLocal summary for %s: worstStatus=%s; keyIssue=%s", entity.ID, es.WorstStatus, es.KeyIssue)
		} else {
			fmt.Fprintf(&sys, "\n\nLocal summary: out-of-service IDs %s", idList(s.CriticalIDs))
		}
	}

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: sys.String()}}
	for _, h := range history {
		if strings.TrimSpace(h.Role) == "" || strings.TrimSpace(h.Content) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
}

// classifyLLMError maps a go-openai failure onto the route's error codes.
func classifyLLMError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llmUpstreamHTTP(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := reqErr.Error()
		if reqErr.Err != nil {
			detail = reqErr.Err.Error()
		}
		return llmUpstreamHTTP(reqErr.HTTPStatusCode, detail, err)
	}
	if isTransportError(err) {
		return llmUnavailable(err)
	}
	return llmUpstreamParse(err)
}

// isTransportError reports failures where no usable response arrived.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
