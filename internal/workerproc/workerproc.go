package workerproc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hojaruta-backend/internal/hojas"
	"hojaruta-backend/internal/notificaciones"
	"hojaruta-backend/internal/queue"
	"hojaruta-backend/internal/shared/telemetry"
	"hojaruta-backend/internal/shared/util"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	return MessageMeta{BodyLen: len(body), BodySHA: util.Digest(body)}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrUnknownEvent indicates a message this build does not handle.
type ErrUnknownEvent struct {
	Meta      MessageMeta
	Event     string
	RequestID string
}

func (e ErrUnknownEvent) Error() string { return "unknown event " + e.Event }

// ErrMissingTarget indicates an envio.enviado message without its unit or document.
type ErrMissingTarget struct {
	Meta      MessageMeta
	Event     string
	RequestID string
}

func (e ErrMissingTarget) Error() string { return e.Event + ": missing unidad or hoja id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	Event     string
	HojaID    int64
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + e.Event
	}
	return "process " + e.Event + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := validate(msg, meta); err != nil {
		return msg, meta, err
	}
	return msg, meta, nil
}

func validate(msg queue.Message, meta MessageMeta) error {
	switch msg.Event {
	case queue.EventEnvioEnviado:
		if msg.UnidadID <= 0 || msg.HojaID <= 0 {
			return ErrMissingTarget{Meta: meta, Event: msg.Event, RequestID: msg.RequestID}
		}
	case queue.EventHojasVencimiento:
	default:
		return ErrUnknownEvent{Meta: meta, Event: msg.Event, RequestID: msg.RequestID}
	}
	return nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// Notifier creates the notifications a routing event produces.
type Notifier interface {
	NotifyUnit(ctx context.Context, unidadID, hojaID int64, tipo, mensaje string) (int, error)
	SweepDeadlines(ctx context.Context, dias int) (int, error)
}

// Documents looks up the document named by an event.
type Documents interface {
	Get(ctx context.Context, id int64) (hojas.Hoja, error)
}

// Processor turns routing events into notifications.
type Processor struct {
	Notifications Notifier
	Documents     Documents
}

// NewProcessor constructs a Processor. docs may be nil.
func NewProcessor(notifications Notifier, docs Documents) *Processor {
	return &Processor{Notifications: notifications, Documents: docs}
}

// Handle processes one decoded message. It matches queue.HandlerFunc so the
// inline queue can call it directly.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if p == nil || p.Notifications == nil {
		return errors.New("notification service not configured")
	}
	if err := validate(msg, MessageMeta{}); err != nil {
		return err
	}
	var err error
	switch msg.Event {
	case queue.EventEnvioEnviado:
		err = p.unitReceived(ctx, msg)
	case queue.EventHojasVencimiento:
		var created int
		created, err = p.Notifications.SweepDeadlines(ctx, msg.Dias)
		if err == nil {
			telemetry.Info("worker.vencimiento.done", map[string]any{"dias": msg.Dias, "creadas": created, "request_id": msg.RequestID})
		}
	}
	if err != nil {
		return ErrProcess{Event: msg.Event, HojaID: msg.HojaID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

func (p *Processor) unitReceived(ctx context.Context, msg queue.Message) error {
	mensaje := "Nuevo documento recibido"
	if p.Documents != nil {
		h, err := p.Documents.Get(ctx, msg.HojaID)
		switch {
		case err == nil:
			mensaje = fmt.Sprintf("Nuevo documento recibido: %s - %s", h.NumeroHR, h.Referencia)
		case errors.Is(err, hojas.ErrNotFound):
			// The document was removed after the send; the unit is still told.
		default:
			return err
		}
	}
	created, err := p.Notifications.NotifyUnit(ctx, msg.UnidadID, msg.HojaID, notificaciones.TipoEnvioRecibido, mensaje)
	if err != nil {
		return err
	}
	telemetry.Info("worker.envio.notified", map[string]any{
		"envio_id":   msg.EnvioID,
		"hoja_id":    msg.HojaID,
		"unidad_id":  msg.UnidadID,
		"creadas":    created,
		"request_id": msg.RequestID,
	})
	return nil
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, p *Processor, body string) error {
	if p == nil {
		return errors.New("notification service not configured")
	}
	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	return p.Handle(ctx, msg)
}
