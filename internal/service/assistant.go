package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"yobot/internal/model"
	"yobot/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Customer-facing replies
const (
	HandoffPromptMessage   = "Por favor, indícanos el ID de la propiedad que te interesa para ponerte en contacto con el agente. Escribe 'cancelar' para salir."
	HandoffCancelMessage   = "Has cancelado la solicitud de contacto con un agente. ¿En qué más puedo ayudarte?"
	HandoffSuccessMessage  = "En unos minutos, el agente inmobiliario se pondrá en contacto contigo. Gracias por contactar a Asesores Inmobiliarios."
	HandoffNotFoundMessage = "Lo sentimos, no encontramos la propiedad con ID %s. Por favor, verifica el ID e inténtalo nuevamente."
	InvalidPropertyMessage = "Por favor, ingresa un ID de propiedad válido (solo números)."
	agentNotificationText  = "Hola, el cliente %s está interesado en la propiedad %d ubicada en %s, %s. Por favor, ponte en contacto."
)

// Handoff outcomes used in metrics and logs
const (
	handoffNotified       = "notified"
	handoffNotFound       = "not_found"
	handoffInvalidID      = "invalid_id"
	handoffCancelled      = "cancelled"
	handoffDeliveryFailed = "delivery_failed"
)

// Notifier delivers an outbound message and returns the provider message id
type Notifier interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// EventPublisher forwards completed handoffs to downstream systems
type EventPublisher interface {
	PublishHandoff(ctx context.Context, event model.HandoffEvent) error
}

// InteractionLog persists an audit trail of turns and handoffs
type InteractionLog interface {
	LogConversationTurn(ctx context.Context, turn model.TurnRecord) error
	LogHandoff(ctx context.Context, event model.HandoffEvent) error
}

// AssistantDeps wires the assistant's collaborators.
// Publisher and Interactions are optional.
type AssistantDeps struct {
	States        *StateTracker
	Classifier    *IntentClassifier
	Retriever     *Retriever
	Agent         *AnsweringAgent
	Handoff       *HandoffResolver
	Catalog       CatalogReader
	Notifier      Notifier
	Publisher     EventPublisher
	Interactions  InteractionLog
	CancelKeyword string
	Metrics       *Metrics
	Logger        *zap.Logger
}

// Assistant runs one inbound message through the conversation pipeline
type Assistant struct {
	AssistantDeps
	logger *zap.Logger
}

// NewAssistant creates the pipeline
func NewAssistant(deps AssistantDeps) *Assistant {
	if deps.CancelKeyword == "" {
		deps.CancelKeyword = "cancelar"
	}
	return &Assistant{
		AssistantDeps: deps,
		logger:        deps.Logger.Named("assistant"),
	}
}

// Sandbox returns an assistant that shares the classifier, retriever and
// catalog but keeps its own conversation state and chat history.
// Agent notifications go to notifier; nothing is published or persisted.
func (a *Assistant) Sandbox(notifier Notifier) *Assistant {
	deps := a.AssistantDeps
	deps.States = NewStateTracker()
	deps.Agent = a.Agent.WithHistory(NewHistoryStore(a.Agent.history.MaxTurns()))
	deps.Notifier = notifier
	deps.Publisher = nil
	deps.Interactions = nil
	deps.Metrics = nil
	deps.Logger = a.Logger.Named("sandbox")
	return NewAssistant(deps)
}

// HandleMessage routes text from sender and returns the reply to send back.
// It always produces a reply; failures are logged and turned into apologies.
// Messages from the same sender are handled one at a time.
func (a *Assistant) HandleMessage(ctx context.Context, sender, text string) *model.Reply {
	unlock := a.States.Lock(sender)
	defer unlock()

	start := time.Now()
	reply := &model.Reply{TurnID: uuid.NewString()}
	log := a.logger.With(zap.String("turn_id", reply.TurnID), zap.String("sender", sender))
	log.Info("inbound message", zap.String("body", text))

	switch a.States.Get(sender) {
	case model.StateAwaitingPropertyID:
		a.handlePropertyID(ctx, log, sender, text, reply)
	default:
		a.handleFresh(ctx, log, sender, text, reply)
	}

	reply.State = a.States.Get(sender)
	a.Metrics.Message(reply.Route)
	log.Info("reply ready",
		zap.String("route", string(reply.Route)),
		zap.String("state", string(reply.State)),
		zap.Int("length", len([]rune(reply.Body))),
		zap.Duration("took", time.Since(start)),
	)

	a.recordTurn(model.TurnRecord{
		TurnID:      reply.TurnID,
		Sender:      sender,
		Route:       reply.Route,
		Intent:      reply.Intent,
		ListingIDs:  reply.ListingIDs,
		ReplyLength: len([]rune(reply.Body)),
		Latency:     time.Since(start),
	})
	return reply
}

func (a *Assistant) handleFresh(ctx context.Context, log *zap.Logger, sender, text string, reply *model.Reply) {
	reply.Intent = a.Classifier.Classify(ctx, text)
	log.Debug("classified", zap.String("intent", string(reply.Intent)))

	if reply.Intent == model.IntentContactAgent {
		a.States.Set(sender, model.StateAwaitingPropertyID)
		reply.Route = model.RouteHandoffPrompt
		reply.Body = HandoffPromptMessage
		return
	}

	hits, err := a.Retriever.Retrieve(ctx, a.Catalog.Current(), text)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		reply.Route = model.RouteFailure
		reply.Body = ApologyMessage
		return
	}
	reply.ListingIDs = model.ListingIDs(hits)
	log.Debug("retrieved listings", zap.Int64s("listing_ids", reply.ListingIDs))

	body, err := a.Agent.Answer(ctx, hits, text, sender)
	if err != nil {
		log.Error("answer failed", zap.Error(err))
		reply.Route = model.RouteFailure
		reply.Body = body
		return
	}
	reply.Route = model.RouteAnswer
	reply.Body = body
}

func (a *Assistant) handlePropertyID(ctx context.Context, log *zap.Logger, sender, text string, reply *model.Reply) {
	// One attempt only: every outcome returns the sender to NONE.
	a.States.Set(sender, model.StateNone)

	if utils.Normalize(text) == a.CancelKeyword {
		a.Metrics.Handoff(handoffCancelled)
		reply.Route = model.RouteHandoffCancel
		reply.Body = HandoffCancelMessage
		return
	}

	propertyID, err := ParsePropertyID(text)
	if errors.Is(err, ErrPropertyIDOutOfRange) {
		log.Info("property id out of range", zap.Error(err))
		a.Metrics.Handoff(handoffNotFound)
		reply.Route = model.RouteHandoffMiss
		reply.Body = fmt.Sprintf(HandoffNotFoundMessage, strings.TrimSpace(text))
		return
	}
	if err != nil {
		log.Info("invalid property id", zap.Error(err))
		a.Metrics.Handoff(handoffInvalidID)
		reply.Route = model.RouteHandoffBadID
		reply.Body = InvalidPropertyMessage
		return
	}

	agent, hasAgent := a.Handoff.AgentFor(propertyID)
	location, neighborhood, hasListing := a.Handoff.Resolve(propertyID)
	if !hasAgent || !hasListing {
		log.Info("property not found",
			zap.Int64("property_id", propertyID),
			zap.Bool("has_agent", hasAgent),
			zap.Bool("has_listing", hasListing),
		)
		a.Metrics.Handoff(handoffNotFound)
		reply.Route = model.RouteHandoffMiss
		reply.Body = fmt.Sprintf(HandoffNotFoundMessage, strconv.FormatInt(propertyID, 10))
		return
	}

	event := model.HandoffEvent{
		EventID:      uuid.NewString(),
		Sender:       sender,
		PropertyID:   propertyID,
		AgentPhone:   agent.Phone,
		Location:     location,
		Neighborhood: neighborhood,
		OccurredAt:   time.Now().UTC(),
	}

	notice := fmt.Sprintf(agentNotificationText, sender, propertyID, location, neighborhood)
	sid, err := a.Notifier.Send(ctx, agent.Phone, notice)
	if err != nil {
		log.Error("agent notification failed",
			zap.Int64("property_id", propertyID),
			zap.String("agent", agent.Phone),
			zap.Error(err),
		)
		a.Metrics.DeliveryFailure("agent")
		a.Metrics.Handoff(handoffDeliveryFailed)
		a.recordHandoff(ctx, log, event)
		reply.Route = model.RouteFailure
		reply.Body = ApologyMessage
		return
	}

	log.Info("agent notified",
		zap.Int64("property_id", propertyID),
		zap.String("agent", agent.Phone),
		zap.String("message_sid", sid),
	)
	event.Notified = true
	a.Metrics.Handoff(handoffNotified)
	a.recordHandoff(ctx, log, event)

	reply.Route = model.RouteHandoffDone
	reply.Body = HandoffSuccessMessage
	reply.AgentNotified = true
}

func (a *Assistant) recordHandoff(ctx context.Context, log *zap.Logger, event model.HandoffEvent) {
	if a.Publisher != nil {
		if err := a.Publisher.PublishHandoff(ctx, event); err != nil {
			log.Warn("failed to publish handoff event", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	if a.Interactions != nil {
		go func() {
			logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Interactions.LogHandoff(logCtx, event); err != nil {
				a.logger.Warn("failed to log handoff", zap.String("event_id", event.EventID), zap.Error(err))
			}
		}()
	}
}

func (a *Assistant) recordTurn(turn model.TurnRecord) {
	if a.Interactions == nil {
		return
	}
	go func() {
		logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Interactions.LogConversationTurn(logCtx, turn); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("failed to log turn", zap.String("turn_id", turn.TurnID), zap.Error(err))
		}
	}()
}
