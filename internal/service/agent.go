package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yobot/internal/catalog"
	"yobot/internal/model"
	"yobot/internal/utils"

	"go.uber.org/zap"
)

// MaxReplyLength is the WhatsApp message body limit in characters
const MaxReplyLength = 1600

// ApologyMessage is sent when a reply cannot be produced
const ApologyMessage = "Lo sentimos, en este momento no podemos procesar tu consulta. Por favor, inténtalo nuevamente en unos minutos."

const systemPromptTemplate = `Eres un asistente experto de bienes raíces. Te llamas Yobot. Usa el contexto obtenido para responder preguntas.

Intenta generar respuestas dinámicas y personalizadas para cada pregunta. Si la pregunta es acerca de inmobiliaria, responde con información relevante sobre las propiedades.

Si la pregunta no es acerca de inmobiliaria, recuerda tu rol al usuario y no respondas la pregunta.

Tus tareas son:

1. **Responder preguntas concisas:** Responde a las preguntas en **%[1]d caracteres o menos**. **Es crucial** que la respuesta **no** exceda este límite. Si es necesario, recorta la información para ajustarte a este límite. Si la respuesta excede el límite, corta la información menos relevante.
2. **SIEMPRE** proporciona el ID de cada propiedad.
3. **Almacenar la información:** Al recibir la lista de propiedades, almacena estos datos en tu memoria para futuras referencias, pero siempre asegúrate de que cada respuesta se mantenga dentro del límite de %[1]d caracteres.
4. **Manejar preguntas ambiguas:** Si el usuario hace una pregunta poco clara, intenta refrasear la pregunta o solicita más información para brindarle una respuesta precisa. Por ejemplo, si el usuario pregunta "¿Cómo es el vecindario?", puedes responder "¿Te refieres al vecindario de la propiedad 1 o de la propiedad 2? Además, ¿qué aspectos del vecindario te interesan en particular?".
5. **Manejar múltiples propiedades:** Si tu respuesta incluye más de una propiedad, genera una respuesta resumida de cada propiedad.

**Ejemplo adicional:**

* **Usuario:** ¿Qué tipo de transporte público hay cerca de la propiedad 3?
* **Tú:** Cerca de la propiedad 3 hay una parada de autobús a dos cuadras y una estación de metro a 10 minutos a pie. Puedes encontrar más detalles sobre la ubicación y las opciones de transporte en el listado completo de la propiedad: www.casas.com.

Propiedades relevantes:

%[2]s`

var errEmptyReply = errors.New("chat model returned an empty reply")

// AnsweringAgent answers property questions from retrieved listings and
// the session's recent history
type AnsweringAgent struct {
	chat     ChatModel
	history  *HistoryStore
	maxReply int
	metrics  *Metrics
	logger   *zap.Logger
}

// NewAnsweringAgent creates an agent whose replies never exceed maxReply characters
func NewAnsweringAgent(chat ChatModel, history *HistoryStore, maxReply int, metrics *Metrics, logger *zap.Logger) *AnsweringAgent {
	if maxReply <= 0 || maxReply > MaxReplyLength {
		maxReply = MaxReplyLength
	}
	return &AnsweringAgent{
		chat:     chat,
		history:  history,
		maxReply: maxReply,
		metrics:  metrics,
		logger:   logger.Named("agent"),
	}
}

// WithHistory returns a copy of the agent that reads and extends history instead
func (a *AnsweringAgent) WithHistory(history *HistoryStore) *AnsweringAgent {
	clone := *a
	clone.history = history
	return &clone
}

// Answer generates a reply for userMessage. The returned text is always
// sendable: on failure it is ApologyMessage and err explains why.
// History is only extended when generation succeeds.
func (a *AnsweringAgent) Answer(ctx context.Context, listings []model.RetrievedListing, userMessage, sessionID string) (string, error) {
	prompt := BuildSystemPrompt(listings, a.maxReply)
	turns := append(a.history.Get(sessionID), model.ChatTurn{Role: model.RoleUser, Content: userMessage})

	start := time.Now()
	reply, err := a.chat.Generate(ctx, prompt, turns)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	a.metrics.ObserveLLM(time.Since(start), err)
	if err != nil {
		return ApologyMessage, fmt.Errorf("failed to generate answer: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if n := len([]rune(reply)); n > a.maxReply {
		a.logger.Warn("reply exceeds channel limit, truncating",
			zap.String("session", sessionID),
			zap.Int("length", n),
			zap.Int("limit", a.maxReply),
		)
		reply = utils.TruncateRunes(reply, a.maxReply)
	}

	a.history.Append(sessionID, userMessage, reply)
	return reply, nil
}

// BuildSystemPrompt renders the persona instructions with listings as context
func BuildSystemPrompt(listings []model.RetrievedListing, maxReply int) string {
	blocks := make([]string, 0, len(listings))
	for _, l := range listings {
		rendering := l.Rendering
		if rendering == "" {
			rendering = catalog.Render(l.Listing)
		}
		blocks = append(blocks, strings.TrimSpace(rendering))
	}
	listingContext := strings.Join(blocks, "\n\n")
	if listingContext == "" {
		listingContext = "(no hay propiedades disponibles)"
	}
	return fmt.Sprintf(systemPromptTemplate, maxReply, listingContext)
}
