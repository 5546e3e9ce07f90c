package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/session"
	"aichat/internal/stream"
	"aichat/internal/transport"
	"aichat/internal/upload"
	"aichat/internal/usage"
)

const noPromptText = "No prompt."

var (
	errNoText        = errors.New("no text provided")
	errEmptyResponse = errors.New("failed to process response")
)

// Sink receives the output of a turn. Frame is called once per non-empty
// content delta in arrival order; exactly one of Done, Fail or Aborted ends
// the turn.
type Sink interface {
	Frame(f models.Frame) error
	Done(info usage.Info) error
	Fail(message string) error
	Aborted() error
}

// SendRequest is one user turn.
type SendRequest struct {
	Session  string
	Provider string
	Model    string
	Text     string
	Uploads  []models.Upload
	APIKey   string
	Stream   bool
	Reset    bool
}

// Service runs chat turns against configured providers.
type Service struct {
	registry *provider.Registry
	store    session.Store
	client   transport.Client
	logger   *slog.Logger
}

// NewService wires a Service.
func NewService(registry *provider.Registry, store session.Store, client transport.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		store:    store,
		client:   client,
		logger:   logger,
	}
}

// Registry returns the provider registry.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

func (s *Service) open(sessionID, providerID, model string) (*provider.Builder, *session.Session, error) {
	b, err := s.registry.Resolve(providerID, model)
	if err != nil {
		return nil, nil, err
	}
	key := session.Key{Session: sessionID, Provider: b.Profile.ID, Model: b.Model.ID}
	if err := key.Validate(); err != nil {
		return nil, nil, err
	}
	return b, session.New(s.store, key), nil
}

// Send runs one turn and reports its outcome to sink. On any failure the
// user entry added for the turn is removed again, and pending uploads are
// cleared whatever the outcome. The returned error is the one reported.
func (s *Service) Send(ctx context.Context, req SendRequest, sink Sink) error {
	b, sess, err := s.open(req.Session, req.Provider, req.Model)
	if err != nil {
		s.report(ctx, req, sink, err)
		return err
	}

	t := &turn{service: s, builder: b, session: sess, req: req, sink: sink}
	err = t.run(ctx)

	cleanup := context.WithoutCancel(ctx)
	if err != nil && t.historyAdded {
		if undoErr := sess.UndoHistory(cleanup); undoErr != nil {
			s.logger.Error("roll back history", slog.String("provider", req.Provider), slog.Any("error", undoErr))
		}
	}
	if clearErr := sess.ClearUploads(cleanup); clearErr != nil {
		s.logger.Error("clear uploads", slog.String("provider", req.Provider), slog.Any("error", clearErr))
	}

	if err != nil {
		s.report(ctx, req, sink, err)
	}
	return err
}

func (s *Service) report(ctx context.Context, req SendRequest, sink Sink, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Info("turn aborted", slog.String("provider", req.Provider), slog.String("model", req.Model))
		_ = sink.Aborted()
		return
	}

	s.logger.WarnContext(ctx, "turn failed",
		slog.String("provider", req.Provider),
		slog.String("model", req.Model),
		slog.Any("error", err),
	)
	_ = sink.Fail(UserMessage(err))
}

type turn struct {
	service      *Service
	builder      *provider.Builder
	session      *session.Session
	req          SendRequest
	sink         Sink
	historyAdded bool
}

func (t *turn) run(ctx context.Context) error {
	if t.req.Reset {
		if err := t.session.Reset(ctx); err != nil {
			return err
		}
	}
	if len(t.req.Uploads) > 0 {
		if err := t.session.SetUploads(ctx, t.req.Uploads); err != nil {
			return err
		}
	}

	uploads, err := t.session.Uploads(ctx)
	if err != nil {
		return err
	}

	text := t.req.Text
	if prompt, rest, found := upload.ExtractPrompt(uploads); found && prompt != "" {
		text, uploads = prompt, rest
		if err := t.session.SetUploads(ctx, uploads); err != nil {
			return err
		}
	}
	if strings.TrimSpace(text) == "" {
		if len(uploads) == 0 {
			return errNoText
		}
		text = noPromptText
	}

	if _, err := t.builder.APIKey(t.req.APIKey); err != nil {
		return err
	}

	history, err := t.addToHistory(ctx, models.RoleUser, text, uploads)
	if err != nil {
		return err
	}

	req, err := t.builder.Build(provider.Call{APIKey: t.req.APIKey, Stream: t.req.Stream}, history.Messages)
	if err != nil {
		return err
	}

	reply, counters, err := t.exchange(ctx, req)
	if err != nil {
		return err
	}

	info, err := t.session.Info(ctx)
	if err != nil {
		return err
	}
	info.Add(counters, t.builder.Model.Pricing)
	if err := t.session.SetInfo(ctx, info); err != nil {
		return err
	}

	if _, err := t.addToHistory(ctx, models.RoleAssistant, reply, nil); err != nil {
		return err
	}

	return t.sink.Done(info)
}

// addToHistory composes the vendor message and appends it. The stored
// history is untouched when composing fails.
func (t *turn) addToHistory(ctx context.Context, role models.Role, text string, uploads []models.Upload) (session.History, error) {
	msg, err := t.builder.Compose(role, text, uploads)
	if err != nil {
		return session.History{}, err
	}

	history, err := t.session.History(ctx)
	if err != nil {
		return session.History{}, err
	}
	history.Append(msg, models.HistoryEntry{Role: role, Prompt: text})
	if err := t.session.SaveHistory(ctx, history); err != nil {
		return session.History{}, err
	}
	if role == models.RoleUser {
		t.historyAdded = true
	}
	return history, nil
}

func (t *turn) exchange(ctx context.Context, req *transport.Request) (string, usage.Counters, error) {
	resp, err := t.service.client.Do(ctx, req)
	if err != nil {
		return "", usage.Counters{}, t.transportError(ctx, err)
	}
	defer resp.Body.Close()

	acct := t.builder.NewAccountant()
	var reply strings.Builder

	emit := func(f models.Frame) error {
		acct.Update(f)
		if f.Content == "" {
			return nil
		}
		reply.WriteString(f.Content)
		if err := t.sink.Frame(models.Frame{Content: f.Content}); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		return nil
	}

	if req.Stream {
		err = stream.Pump(ctx, resp.Body, func(frame string) error {
			f, ok, err := t.builder.Adapter.ProcessChunk(frame)
			if err != nil || !ok {
				return err
			}
			return emit(f)
		})
	} else {
		var body []byte
		body, err = io.ReadAll(resp.Body)
		if err == nil {
			var f models.Frame
			if f, err = t.builder.Adapter.ProcessResponse(body); err == nil {
				err = emit(f)
			}
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", usage.Counters{}, ctxErr
		}
		return "", usage.Counters{}, err
	}

	if reply.Len() == 0 {
		return "", usage.Counters{}, errEmptyResponse
	}
	return reply.String(), acct.Totals(), nil
}

func (t *turn) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) {
		return &provider.TransportError{Message: provider.StatusMessage(0), Err: err}
	}

	msg := provider.StatusMessage(statusErr.StatusCode)
	var fields provider.Fields
	if json.Unmarshal(statusErr.Body, &fields) == nil && fields != nil {
		if vendorMsg := t.builder.Adapter.DecodeError(fields); vendorMsg != "" {
			msg = vendorMsg
		}
	}
	return &provider.TransportError{
		StatusCode: statusErr.StatusCode,
		Message:    msg,
		Err:        fmt.Errorf("%s: %w", t.builder.Profile.ID, err),
	}
}
