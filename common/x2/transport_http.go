package x2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireEnvelope is the JSON transport encoding of a Message: the
// payload is kept as raw JSON and decoded against a Kind-specific Go
// type on receipt, since Message.Payload is an interface.
type wireEnvelope struct {
	Kind         Kind            `json:"kind"`
	SourceCellID uint16          `json:"sourceCellId"`
	TargetCellID uint16          `json:"targetCellId"`
	Payload      json.RawMessage `json:"payload"`
}

// payloadPrototype returns a pointer to a zero value of the Go type
// registered for k, so json.Unmarshal has somewhere to decode into.
func payloadPrototype(k Kind) any {
	switch k {
	case KindHandoverRequest, KindMcHandoverRequest:
		return &HandoverRequestPayload{}
	case KindHandoverRequestAck:
		return &HandoverRequestAckPayload{}
	case KindHandoverPreparationFailure:
		return &HandoverPreparationFailurePayload{}
	case KindSnStatusTransfer:
		return &SnStatusTransferPayload{}
	case KindUeContextRelease:
		return &UeContextReleasePayload{}
	case KindRlcSetupRequest:
		return &RlcSetupRequestPayload{}
	case KindRlcSetupCompleted:
		return &RlcSetupCompletedPayload{}
	case KindUeData:
		return &UeDataPayload{}
	case KindForwardRlcPdu:
		return &ForwardRlcPduPayload{}
	case KindSecondaryCellHandoverCompleted:
		return &SecondaryCellHandoverCompletedPayload{}
	case KindUeSinrUpdate:
		return &UeSinrUpdatePayload{}
	case KindAssistantInformation:
		return &AssistantInformationPayload{}
	case KindNotifyLteMmWaveHandoverCompleted:
		return &NotifyLteMmWaveHandoverCompletedPayload{}
	case KindNotifyCoordinatorHandoverFailed:
		return &NotifyCoordinatorHandoverFailedPayload{}
	default:
		return &map[string]any{}
	}
}

// CellEndpoint resolves a CellID to the base URL of the process
// hosting it, so HTTPTransport knows where to POST.
type CellEndpoint interface {
	Resolve(cellID uint16) (baseURL string, ok bool)
}

// HTTPTransport is the cross-process X2 transport: each cell exposes a
// chi-routed /x2/message endpoint, and peers deliver via http.Client.
// Grounded on the teacher's chi-based HTTP servers plus its
// ausf/nrf HTTP clients, generalized to a single bidirectional
// message endpoint instead of a REST resource per operation.
type HTTPTransport struct {
	mu       sync.RWMutex
	handlers map[uint16]Handler
	endpoints CellEndpoint
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPTransport creates an HTTPTransport that resolves peer
// addresses through endpoints.
func NewHTTPTransport(endpoints CellEndpoint, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		handlers:  make(map[uint16]Handler),
		endpoints: endpoints,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}
}

func (t *HTTPTransport) Register(localCellID uint16, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[localCellID] = h
}

// Send POSTs msg to the target cell's /x2/message endpoint.
func (t *HTTPTransport) Send(ctx context.Context, msg Message) error {
	baseURL, ok := t.endpoints.Resolve(msg.TargetCellID)
	if !ok {
		return fmt.Errorf("x2: no endpoint known for cell %d", msg.TargetCellID)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("x2: marshal payload for %s: %w", msg.Kind, err)
	}
	env := wireEnvelope{
		Kind:         msg.Kind,
		SourceCellID: msg.SourceCellID,
		TargetCellID: msg.TargetCellID,
		Payload:      payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("x2: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/x2/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("x2: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("x2: deliver %s to cell %d: %w", msg.Kind, msg.TargetCellID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("x2: cell %d rejected %s with status %d", msg.TargetCellID, msg.Kind, resp.StatusCode)
	}
	return nil
}

// RegisterRoutes mounts the receiving endpoint onto r.
func (t *HTTPTransport) RegisterRoutes(r chi.Router) {
	r.Post("/x2/message", t.handleMessage)
}

func (t *HTTPTransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env wireEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, fmt.Sprintf("decode envelope: %v", err), http.StatusBadRequest)
		return
	}

	proto := payloadPrototype(env.Kind)
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, proto); err != nil {
			http.Error(w, fmt.Sprintf("decode payload: %v", err), http.StatusBadRequest)
			return
		}
	}

	t.mu.RLock()
	h := t.handlers[env.TargetCellID]
	t.mu.RUnlock()

	if h == nil {
		http.Error(w, fmt.Sprintf("no such cell %d", env.TargetCellID), http.StatusNotFound)
		return
	}

	if t.logger != nil {
		t.logger.Debug("x2 message received over http",
			zap.Uint16("source_cell", env.SourceCellID),
			zap.Uint16("target_cell", env.TargetCellID),
			zap.String("kind", env.Kind.String()))
	}

	h(r.Context(), Message{
		Kind:         env.Kind,
		SourceCellID: env.SourceCellID,
		TargetCellID: env.TargetCellID,
		Payload:      derefIfPtr(proto),
	})
	w.WriteHeader(http.StatusNoContent)
}

func derefIfPtr(v any) any {
	switch p := v.(type) {
	case *HandoverRequestPayload:
		return *p
	case *HandoverRequestAckPayload:
		return *p
	case *HandoverPreparationFailurePayload:
		return *p
	case *SnStatusTransferPayload:
		return *p
	case *UeContextReleasePayload:
		return *p
	case *RlcSetupRequestPayload:
		return *p
	case *RlcSetupCompletedPayload:
		return *p
	case *UeDataPayload:
		return *p
	case *ForwardRlcPduPayload:
		return *p
	case *SecondaryCellHandoverCompletedPayload:
		return *p
	case *UeSinrUpdatePayload:
		return *p
	case *AssistantInformationPayload:
		return *p
	case *NotifyLteMmWaveHandoverCompletedPayload:
		return *p
	case *NotifyCoordinatorHandoverFailedPayload:
		return *p
	default:
		return v
	}
}
