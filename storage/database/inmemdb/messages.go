package inmemdb

import (
	"context"
	"slices"
	"sort"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
)

var errMessageNotFound = core.NewNotFoundError("message")

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func cloneMessage(m message.Message) message.Message {
	m.ReadBy = slices.Clone(m.ReadBy)
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
	return m
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	m = cloneMessage(m)
	err := repo.db.write(ctx, "CreateMessage", func(t *tables) error {
		t.messages[m.ID] = m
		return nil
	})
	if err != nil {
		return message.Message{}, err
	}
	return cloneMessage(m), nil
}

func (repo *messageRepository) GetMessageByID(_ context.Context, id string) (message.Message, error) {
	var (
		m  message.Message
		ok bool
	)
	repo.db.read(func(t *tables) { m, ok = t.messages[id] })
	if !ok {
		return message.Message{}, errMessageNotFound
	}
	return cloneMessage(m), nil
}

func addressedTo(m message.Message, recipients []message.Recipient) bool {
	if recipients == nil {
		return true
	}
	for _, r := range recipients {
		if m.Recipient.Kind == r.Kind && (!r.Kind.Targeted() || m.Recipient.ID == r.ID) {
			return true
		}
	}
	return false
}

func (repo *messageRepository) QueryMessages(_ context.Context, filter message.Filter) ([]message.Message, error) {
	msgs := make([]message.Message, 0)
	repo.db.read(func(t *tables) {
		for _, m := range t.messages {
			if addressedTo(m, filter.Recipients) {
				msgs = append(msgs, cloneMessage(m))
			}
		}
	})
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.After(msgs[j].Timestamp) })
	return msgs, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, email string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return repo.db.write(ctx, "MarkRead", func(t *tables) error {
		for _, id := range ids {
			m, ok := t.messages[id]
			if !ok || core.ContainsString(m.ReadBy, email) {
				continue
			}
			m.ReadBy = append(slices.Clone(m.ReadBy), email)
			t.messages[id] = m
		}
		return nil
	})
}

func (repo *messageRepository) DeleteMessage(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteMessage", func(t *tables) error {
		if _, ok := t.messages[id]; !ok {
			return errMessageNotFound
		}
		delete(t.messages, id)
		return nil
	})
}

func (repo *messageRepository) ReassignRepEmail(ctx context.Context, oldEmail, newEmail string) (int, error) {
	var n int
	err := repo.db.write(ctx, "ReassignRepEmail", func(t *tables) error {
		for id, m := range t.messages {
			addressed := m.Recipient.Kind == message.ToRep && m.Recipient.ID == oldEmail
			read := core.ContainsString(m.ReadBy, oldEmail)
			if !addressed && !read {
				continue
			}
			m = cloneMessage(m)
			if addressed {
				m.Recipient.ID = newEmail
				n++
			}
			if read {
				m.ReadBy = without(m.ReadBy, oldEmail)
				if !core.ContainsString(m.ReadBy, newEmail) {
					m.ReadBy = append(m.ReadBy, newEmail)
				}
			}
			t.messages[id] = m
		}
		return nil
	})
	return n, err
}

func (repo *messageRepository) CreateConversation(ctx context.Context, c message.Conversation) (message.Conversation, error) {
	err := repo.db.write(ctx, "CreateConversation", func(t *tables) error {
		t.conversations[c.ID] = c
		return nil
	})
	if err != nil {
		return message.Conversation{}, err
	}
	return c, nil
}

func (repo *messageRepository) RecentConversations(_ context.Context, n int) ([]message.Conversation, error) {
	convs := make([]message.Conversation, 0)
	repo.db.read(func(t *tables) {
		for _, c := range t.conversations {
			convs = append(convs, c)
		}
	})
	sort.Slice(convs, func(i, j int) bool { return convs[i].Timestamp.After(convs[j].Timestamp) })
	return limit(convs, n), nil
}
