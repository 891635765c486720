package session

import (
	"slices"

	"chatsync/internal/app/model"
)

// Snapshot is a point-in-time copy of the session handed to the UI bridge.
type Snapshot struct {
	Authenticated   bool             `json:"authenticated"`
	User            *model.User      `json:"user"`
	Workspace       *model.Workspace `json:"workspace"`
	ActiveChannelID *int64           `json:"activeChannelId"`
	Channels        []model.Channel  `json:"channels"`
	SingleChannels  []model.Channel  `json:"singleChannels"`
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Workspace() *model.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.workspace == nil {
		return nil
	}
	ws := *s.workspace
	return &ws
}

// WorkspaceName returns the current workspace's name, or "" when there is none.
func (s *Session) WorkspaceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.workspace == nil {
		return ""
	}
	return s.workspace.Name
}

// UserByID looks a member up in the workspace directory.
func (s *Session) UserByID(id int64) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return u, ok
}

// Users returns a copy of the workspace directory.
func (s *Session) Users() map[int64]model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]model.User, len(s.users))
	for id, u := range s.users {
		out[id] = u
	}
	return out
}

// AllChannels returns the raw channel list, one-to-one channels included.
func (s *Session) AllChannels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneChannels(s.channels)
}

// Channels lists every channel except one-to-one conversations.
func (s *Session) Channels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelsLocked()
}

func (s *Session) channelsLocked() []model.Channel {
	out := make([]model.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.Type != model.ChannelSingle {
			out = append(out, cloneChannel(ch))
		}
	}
	return out
}

// SingleChannels lists one-to-one conversations with Recipient set to the member
// that is not the current user, resolved through the directory. Recipient is nil
// when that member is not in the directory.
func (s *Session) SingleChannels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.singleChannelsLocked()
}

func (s *Session) singleChannelsLocked() []model.Channel {
	var self int64
	if s.user != nil {
		self = s.user.ID
	}

	out := make([]model.Channel, 0)
	for _, ch := range s.channels {
		if ch.Type != model.ChannelSingle {
			continue
		}

		ch = cloneChannel(ch)
		ch.Recipient = nil
		for _, member := range ch.Members {
			if member == self {
				continue
			}
			if u, ok := s.users[member]; ok {
				ch.Recipient = &u
			}
			break
		}
		out = append(out, ch)
	}
	return out
}

// ChannelMessages returns the messages of a channel oldest-first, or an empty slice.
func (s *Session) ChannelMessages(channelID int64) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages[channelID])
}

// HasMessages reports whether the channel holds at least one message.
func (s *Session) HasMessages(channelID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[channelID]) > 0
}

// ActiveChannel returns the focused channel, if any.
func (s *Session) ActiveChannel() (model.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeChannel == nil {
		return model.Channel{}, false
	}
	i := s.indexOf(*s.activeChannel)
	if i < 0 {
		return model.Channel{}, false
	}
	return cloneChannel(s.channels[i]), true
}

// ActiveChannelMessages returns the focused channel's messages, or an empty slice.
func (s *Session) ActiveChannelMessages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeChannel == nil {
		return []model.Message{}
	}
	return cloneMessages(s.messages[*s.activeChannel])
}

// Snapshot copies the session for read-only consumers.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Authenticated:  s.token != "",
		Channels:       s.channelsLocked(),
		SingleChannels: s.singleChannelsLocked(),
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.workspace != nil {
		ws := *s.workspace
		snap.Workspace = &ws
	}
	if s.activeChannel != nil {
		id := *s.activeChannel
		snap.ActiveChannelID = &id
	}
	return snap
}

func cloneChannel(ch model.Channel) model.Channel {
	ch.Members = slices.Clone(ch.Members)
	return ch
}

func cloneChannels(in []model.Channel) []model.Channel {
	out := make([]model.Channel, len(in))
	for i, ch := range in {
		out[i] = cloneChannel(ch)
	}
	return out
}

func cloneMessages(in []model.Message) []model.Message {
	if in == nil {
		return []model.Message{}
	}
	return slices.Clone(in)
}
