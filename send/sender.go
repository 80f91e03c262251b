package send

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatrelay/bus"
	"chatrelay/models"
)

var (
	// ErrBlockedRecipient indicates a send to a blocked contact. Nothing is
	// written to the shared log.
	ErrBlockedRecipient = errors.New("send: recipient is blocked")
	// ErrNotAMember indicates a send to a group the local identity has left.
	ErrNotAMember = errors.New("send: not a member of this group")
	// ErrUnknownDestination indicates the destination contact or group does
	// not exist locally.
	ErrUnknownDestination = errors.New("send: unknown destination")
)

// DefaultReplyDelay spaces out generated replies so a simulated contact
// does not answer within the same instant as the outbound message.
const DefaultReplyDelay = 1500 * time.Millisecond

// Store is the per-identity contact and group persistence collaborator.
type Store interface {
	LoadContacts(owner string) ([]models.Contact, error)
	SaveContacts(owner string, contacts []models.Contact) error
	LoadGroups(owner string) ([]models.Group, error)
	SaveGroups(owner string, groups []models.Group) error
}

// Replier produces a synthetic reply for a simulated contact. It is an
// opaque, possibly slow, possibly failing external call.
type Replier interface {
	GenerateReply(ctx context.Context, contact models.Contact, history []models.ChatMessage) (string, error)
}

// Sender fans one outbound message out into one or more envelopes on the
// shared log: exactly one for a single contact, one per other live member
// for a group.
type Sender struct {
	identity   string
	envelopes  bus.Log
	store      Store
	replier    Replier
	locks      *bus.SessionLocks
	log        *zap.Logger
	replyDelay time.Duration

	newID func() string
	now   func() int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSender creates a sender for the given local identity. The replier may
// be nil, in which case simulated contacts simply never answer. Locks must
// be the instance shared with every other list writer for this identity;
// nil creates a private set.
func NewSender(identity string, envelopes bus.Log, store Store, replier Replier, locks *bus.SessionLocks, logger *zap.Logger) *Sender {
	if locks == nil {
		locks = bus.NewSessionLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		identity:   identity,
		envelopes:  envelopes,
		store:      store,
		replier:    replier,
		locks:      locks,
		log:        logger,
		replyDelay: DefaultReplyDelay,
		newID:      uuid.NewString,
		now:        func() int64 { return time.Now().UnixMilli() },
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Stop cancels pending generated replies and waits for their goroutines to
// finish, so no reply write can land after the store is closed.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// SendToContact delivers one outbound message to a single contact.
//
// A blocked contact is rejected before anything is written. For a real
// contact exactly one envelope is appended to the shared log and the
// message is mirrored into the local history, so the sender sees it without
// waiting for a poll; a failed append leaves the local history untouched.
// For a simulated contact the shared log is bypassed and a generated reply
// is appended asynchronously after a short delay.
func (s *Sender) SendToContact(contactID, content string, attachment *models.Attachment) error {
	unlock := s.locks.Acquire(s.identity)
	defer unlock()

	contacts, err := s.store.LoadContacts(s.identity)
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	index := contactIndexByID(contacts, contactID)
	if index < 0 {
		return fmt.Errorf("%w: contact %q", ErrUnknownDestination, contactID)
	}
	contact := &contacts[index]
	if contact.IsBlocked {
		return ErrBlockedRecipient
	}

	message := models.ChatMessage{
		ID:         s.newID(),
		Role:       models.RoleUser,
		Content:    content,
		Timestamp:  s.now(),
		Attachment: attachment,
	}

	if contact.IsRealUser {
		envelope := bus.Envelope{
			ID:        message.ID,
			From:      s.identity,
			To:        recipientIdentity(*contact),
			Content:   content,
			Timestamp: message.Timestamp,
			Type:      bus.TypeText,
		}
		if attachment != nil {
			envelope.Content = attachment.Data
			envelope.Type = attachment.Type
		}
		if err := s.envelopes.AppendEnvelope(envelope); err != nil {
			return fmt.Errorf("append envelope to %q: %w", envelope.To, err)
		}
	}

	contact.Messages = append(contact.Messages, message)
	if err := s.store.SaveContacts(s.identity, contacts); err != nil {
		return fmt.Errorf("save contacts: %w", err)
	}

	if !contact.IsRealUser {
		s.scheduleReply(*contact)
	}

	return nil
}

// SendToGroup delivers one outbound message to every other live member of
// a group. The message lands once in the group's local history under a base
// id; each fan-out envelope derives its id from that base plus the
// recipient, so ids stay unique across the fan-out set while remaining
// dedup-stable per recipient.
func (s *Sender) SendToGroup(groupID, content string) error {
	unlock := s.locks.Acquire(s.identity)
	defer unlock()

	groups, err := s.store.LoadGroups(s.identity)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}

	index := groupIndexByID(groups, groupID)
	if index < 0 {
		return fmt.Errorf("%w: group %q", ErrUnknownDestination, groupID)
	}
	group := &groups[index]
	if !group.IsMember(s.identity) {
		return ErrNotAMember
	}

	message := models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleUser,
		Content:   content,
		Timestamp: s.now(),
	}
	group.Messages = append(group.Messages, message)
	if err := s.store.SaveGroups(s.identity, groups); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}

	me := bus.Canonicalize(s.identity)
	for _, member := range group.Members {
		if bus.Canonicalize(member) == me {
			continue
		}
		envelope := bus.Envelope{
			ID:        message.ID + "-" + member,
			From:      s.identity,
			To:        member,
			Content:   fmt.Sprintf("[%s] %s", group.Name, content),
			Timestamp: message.Timestamp,
			Type:      bus.TypeText,
		}
		if err := s.envelopes.AppendEnvelope(envelope); err != nil {
			return fmt.Errorf("append group envelope to %q: %w", member, err)
		}
	}

	return nil
}

// scheduleReply asks the reply collaborator for a response and appends it
// to the contact history after a short delay. Failures are logged, never
// surfaced: a silent simulated contact is acceptable, a crashed send loop
// is not.
func (s *Sender) scheduleReply(contact models.Contact) {
	if s.replier == nil || s.ctx.Err() != nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()

		reply, err := s.replier.GenerateReply(ctx, contact, contact.Messages)
		if err != nil {
			s.log.Warn("reply generation failed",
				zap.String("contact", contact.Name), zap.Error(err))
			return
		}

		select {
		case <-time.After(s.replyDelay):
		case <-s.ctx.Done():
			return
		}

		if err := s.appendGeneratedReply(contact.ID, reply); err != nil {
			s.log.Warn("append generated reply failed",
				zap.String("contact", contact.Name), zap.Error(err))
		}
	}()
}

func (s *Sender) appendGeneratedReply(contactID, reply string) error {
	unlock := s.locks.Acquire(s.identity)
	defer unlock()

	contacts, err := s.store.LoadContacts(s.identity)
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	index := contactIndexByID(contacts, contactID)
	if index < 0 {
		return fmt.Errorf("%w: contact %q", ErrUnknownDestination, contactID)
	}

	contacts[index].Messages = append(contacts[index].Messages, models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleModel,
		Content:   reply,
		Timestamp: s.now(),
	})
	if err := s.store.SaveContacts(s.identity, contacts); err != nil {
		return fmt.Errorf("save contacts: %w", err)
	}

	return nil
}

// recipientIdentity prefers the stable username over the display name when
// addressing an envelope.
func recipientIdentity(contact models.Contact) string {
	if contact.Username != "" {
		return contact.Username
	}
	return contact.Name
}

func contactIndexByID(contacts []models.Contact, id string) int {
	for i := range contacts {
		if contacts[i].ID == id {
			return i
		}
	}
	return -1
}

func groupIndexByID(groups []models.Group, id string) int {
	for i := range groups {
		if groups[i].ID == id {
			return i
		}
	}
	return -1
}
