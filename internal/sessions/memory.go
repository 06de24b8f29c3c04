package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// maxMessagesPerSession limits messages retained per session to prevent
// unbounded memory growth in the in-memory store. When exceeded, old
// messages are trimmed to maintain the limit.
const maxMessagesPerSession = 1000

// InMemoryStore is a Store implementation backed by process memory, used in
// tests and for local runs without a configured database path. It is not
// durable across restarts.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*models.Session
	byKey      map[string]string
	messages   map[string][]*models.Message
	memory     map[string]string // "namespace\x00key" -> value
	approvals  map[string]*models.ApprovalRequest
}

// NewInMemoryStore creates a new in-memory Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  map[string]*models.Session{},
		byKey:     map[string]string{},
		messages:  map[string][]*models.Message{},
		memory:    map[string]string{},
		approvals: map[string]*models.ApprovalRequest{},
	}
}

func (m *InMemoryStore) Close() error { return nil }

func (m *InMemoryStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.TouchedAt = session.CreatedAt

	clone := cloneSession(session)
	m.sessions[clone.ID] = clone
	m.byKey[SessionKey(clone.ChannelKind, clone.ChannelScope)] = clone.ID
	return nil
}

func (m *InMemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *InMemoryStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	clone := cloneSession(session)
	clone.CreatedAt = existing.CreatedAt
	clone.TouchedAt = time.Now()
	m.sessions[clone.ID] = clone
	m.byKey[SessionKey(clone.ChannelKind, clone.ChannelScope)] = clone.ID
	return nil
}

func (m *InMemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.byKey, SessionKey(session.ChannelKind, session.ChannelScope))
	delete(m.messages, id)
	return nil
}

func (m *InMemoryStore) GetByKey(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[SessionKey(kind, scope)]
	if !ok {
		return nil, ErrNotFound
	}
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *InMemoryStore) GetOrCreate(ctx context.Context, kind models.ChannelKind, scope string) (*models.Session, error) {
	m.mu.Lock()
	key := SessionKey(kind, scope)
	if id, ok := m.byKey[key]; ok {
		if session, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return cloneSession(session), nil
		}
	}
	m.mu.Unlock()

	session := &models.Session{ChannelKind: kind, ChannelScope: scope}
	if err := m.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *InMemoryStore) Touch(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.TouchedAt = time.Now()
	return nil
}

func (m *InMemoryStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Session
	for _, session := range m.sessions {
		if opts.Channel != "" && session.ChannelKind != opts.Channel {
			continue
		}
		out = append(out, cloneSession(session))
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start > len(out) {
		return []*models.Session{}, nil
	}
	return out[start:end], nil
}

func (m *InMemoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	clone := cloneMessage(msg)
	clone.SessionID = sessionID
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	existing := m.messages[sessionID]
	var maxSeq int64
	for _, e := range existing {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	clone.Seq = maxSeq + 1
	msg.ID, msg.Seq, msg.CreatedAt = clone.ID, clone.Seq, clone.CreatedAt

	m.messages[sessionID] = append(existing, clone)
	if len(m.messages[sessionID]) > maxMessagesPerSession {
		excess := len(m.messages[sessionID]) - maxMessagesPerSession
		m.messages[sessionID] = m.messages[sessionID][excess:]
	}
	if session, ok := m.sessions[sessionID]; ok {
		session.TouchedAt = time.Now()
	}
	return nil
}

func (m *InMemoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := m.messages[sessionID]
	if len(messages) == 0 {
		return []*models.Message{}, nil
	}
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

func (m *InMemoryStore) ReplaceMessageRange(ctx context.Context, sessionID string, fromSeq, toSeq int64, replacement *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.messages[sessionID]
	var kept []*models.Message
	inserted := false
	for _, msg := range existing {
		if msg.Seq >= fromSeq && msg.Seq <= toSeq {
			if !inserted {
				clone := cloneMessage(replacement)
				clone.SessionID = sessionID
				clone.Seq = fromSeq
				if clone.ID == "" {
					clone.ID = uuid.NewString()
				}
				if clone.CreatedAt.IsZero() {
					clone.CreatedAt = time.Now()
				}
				kept = append(kept, clone)
				inserted = true
			}
			continue
		}
		kept = append(kept, msg)
	}
	if !inserted {
		clone := cloneMessage(replacement)
		clone.SessionID = sessionID
		clone.Seq = fromSeq
		kept = append(kept, clone)
	}
	m.messages[sessionID] = kept
	return nil
}

func (m *InMemoryStore) MemoryPut(ctx context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory[namespace+"\x00"+key] = value
	return nil
}

func (m *InMemoryStore) MemoryGet(ctx context.Context, namespace, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.memory[namespace+"\x00"+key]
	return v, ok, nil
}

func (m *InMemoryStore) MemoryDelete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.memory, namespace+"\x00"+key)
	return nil
}

func (m *InMemoryStore) SaveApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if req == nil {
		return errors.New("approval request is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Decision == "" {
		req.Decision = models.DecisionPending
	}
	clone := *req
	m.approvals[clone.ID] = &clone
	return nil
}

func (m *InMemoryStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (m *InMemoryStore) DecideApproval(ctx context.Context, id string, decision models.Decision, decidedBy string) (*models.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Decision == models.DecisionPending {
		req.Decision = decision
		req.DecidedBy = decidedBy
		req.DecidedAt = time.Now()
	}
	clone := *req
	return &clone, nil
}

func cloneSession(session *models.Session) *models.Session {
	if session == nil {
		return nil
	}
	clone := *session
	if len(session.ToolAllowlist) > 0 {
		clone.ToolAllowlist = append([]string{}, session.ToolAllowlist...)
	}
	if len(session.AdminIdentity) > 0 {
		clone.AdminIdentity = append([]string{}, session.AdminIdentity...)
	}
	return &clone
}

func cloneMessage(msg *models.Message) *models.Message {
	if msg == nil {
		return nil
	}
	clone := *msg
	if len(msg.Content) > 0 {
		clone.Content = append([]models.ContentBlock{}, msg.Content...)
	}
	return &clone
}
