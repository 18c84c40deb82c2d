package provisioner

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Operation names accepted by Memory.Fail and Memory.FailNext.
const (
	OpCreateParent      = "create_parent"
	OpDeleteParent      = "delete_parent"
	OpCreateChannelPair = "create_channel_pair"
	OpRenameChannelPair = "rename_channel_pair"
	OpDeleteChannelPair = "delete_channel_pair"
	OpSetGrants         = "set_grants"
	OpSendDirectNotice  = "send_direct_notice"
	OpPostChannelNotice = "post_channel_notice"
)

type Channel struct {
	ID       string
	ParentID string
	Name     string
	Kind     string
	Grants   []string
}

// Memory is an in-process Provisioner. It backs development mode when no
// resource service is configured, and lets tests inject failures per
// operation.
type Memory struct {
	mu       sync.Mutex
	seq      int
	parents  map[string]string
	channels map[string]*Channel
	direct   map[string][]Notice
	posted   map[string][]Notice
	always   map[string]error
	queued   map[string][]error
	calls    map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		parents:  make(map[string]string),
		channels: make(map[string]*Channel),
		direct:   make(map[string][]Notice),
		posted:   make(map[string][]Notice),
		always:   make(map[string]error),
		queued:   make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// Fail makes every call of op return err until cleared with a nil err.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.always, op)
		return
	}
	m.always[op] = err
}

// FailNext queues err for the next call of op.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[op] = append(m.queued[op], err)
}

func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// enter records a call of op and returns the injected failure, if any.
// Callers hold m.mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	if q := m.queued[op]; len(q) > 0 {
		m.queued[op] = q[1:]
		return &Error{Op: op, Kind: kindOf(q[0]), Err: q[0]}
	}
	if err, ok := m.always[op]; ok {
		return &Error{Op: op, Kind: kindOf(err), Err: err}
	}
	return nil
}

func kindOf(err error) error {
	if IsPermanent(err) {
		return ErrPermanent
	}
	return ErrTransient
}

func (m *Memory) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Memory) CreateParent(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreateParent); err != nil {
		return "", err
	}
	id := m.id("parent")
	m.parents[id] = name
	return id, nil
}

func (m *Memory) DeleteParent(_ context.Context, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDeleteParent); err != nil {
		return err
	}
	delete(m.parents, parentID)
	return nil
}

func (m *Memory) CreateChannelPair(_ context.Context, parentID, name string, grants []string) (ChannelPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreateChannelPair); err != nil {
		return ChannelPair{}, err
	}
	if _, ok := m.parents[parentID]; !ok {
		return ChannelPair{}, &Error{Op: OpCreateChannelPair, Status: 404, Kind: ErrPermanent, Err: fmt.Errorf("unknown parent %s", parentID)}
	}

	text := &Channel{ID: m.id("text"), ParentID: parentID, Name: name, Kind: "text", Grants: slices.Clone(grants)}
	voice := &Channel{ID: m.id("voice"), ParentID: parentID, Name: VoiceName(name), Kind: "voice", Grants: slices.Clone(grants)}
	m.channels[text.ID] = text
	m.channels[voice.ID] = voice
	return ChannelPair{TextID: text.ID, VoiceID: voice.ID}, nil
}

func (m *Memory) RenameChannelPair(_ context.Context, pair ChannelPair, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRenameChannelPair); err != nil {
		return err
	}
	text, ok := m.channels[pair.TextID]
	if !ok {
		return &Error{Op: OpRenameChannelPair, Status: 404, Kind: ErrPermanent, Err: fmt.Errorf("unknown channel %s", pair.TextID)}
	}
	voice, ok := m.channels[pair.VoiceID]
	if !ok {
		return &Error{Op: OpRenameChannelPair, Status: 404, Kind: ErrPermanent, Err: fmt.Errorf("unknown channel %s", pair.VoiceID)}
	}
	text.Name = name
	voice.Name = VoiceName(name)
	return nil
}

func (m *Memory) DeleteChannelPair(_ context.Context, pair ChannelPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDeleteChannelPair); err != nil {
		return err
	}
	delete(m.channels, pair.TextID)
	delete(m.channels, pair.VoiceID)
	return nil
}

func (m *Memory) SetGrants(_ context.Context, channelID string, memberIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSetGrants); err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return &Error{Op: OpSetGrants, Status: 404, Kind: ErrPermanent, Err: fmt.Errorf("unknown channel %s", channelID)}
	}
	ch.Grants = slices.Clone(memberIDs)
	return nil
}

func (m *Memory) SendDirectNotice(_ context.Context, userID string, notice Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSendDirectNotice); err != nil {
		return err
	}
	m.direct[userID] = append(m.direct[userID], notice)
	return nil
}

func (m *Memory) PostChannelNotice(_ context.Context, channelID string, notice Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPostChannelNotice); err != nil {
		return err
	}
	m.posted[channelID] = append(m.posted[channelID], notice)
	return nil
}

func (m *Memory) Channel(id string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return Channel{}, false
	}
	c := *ch
	c.Grants = slices.Clone(ch.Grants)
	return c, true
}

func (m *Memory) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

func (m *Memory) ParentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.parents)
}

func (m *Memory) DirectNotices(userID string) []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.direct[userID])
}

func (m *Memory) ChannelNotices(channelID string) []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.posted[channelID])
}
