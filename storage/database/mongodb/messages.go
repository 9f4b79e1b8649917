package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
)

var errMessageNotFound = core.NewNotFoundError("message")

type messageRepository struct {
	messages      *mongo.Collection
	conversations *mongo.Collection
}

var _ message.Repository = (*messageRepository)(nil)

// readBy is stored as an array, never null, so $addToSet always applies.
func normaliseMessage(m message.Message) message.Message {
	m.ReadBy = nonNil(m.ReadBy)
	return m
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	m = normaliseMessage(m)
	if err := insert(ctx, "CreateMessage", repo.messages, m); err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func (repo *messageRepository) GetMessageByID(ctx context.Context, id string) (message.Message, error) {
	m, err := findOne[message.Message](ctx, "GetMessageByID", repo.messages, bson.M{"id": id}, errMessageNotFound)
	if err != nil {
		return message.Message{}, err
	}
	return normaliseMessage(m), nil
}

func recipientsQuery(recipients []message.Recipient) bson.M {
	if recipients == nil {
		return bson.M{}
	}
	or := make(bson.A, 0, len(recipients))
	for _, r := range recipients {
		clause := bson.M{"recipient.type": r.Kind}
		if r.Kind.Targeted() {
			clause["recipient.id"] = r.ID
		}
		or = append(or, clause)
	}
	if len(or) == 0 { // an empty audience matches nothing
		return bson.M{"id": bson.M{"$in": bson.A{}}}
	}
	return bson.M{"$or": or}
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter message.Filter) ([]message.Message, error) {
	msgs, err := findAll[message.Message](ctx, "QueryMessages", repo.messages, recipientsQuery(filter.Recipients), newestFirst("timestamp", 0))
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i] = normaliseMessage(msgs[i])
	}
	return msgs, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, email string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.messages.UpdateMany(ctx,
		bson.M{"id": bson.M{"$in": ids}},
		bson.M{"$addToSet": bson.M{"readBy": email}},
	)
	return persistenceError("MarkRead", err, nil)
}

func (repo *messageRepository) DeleteMessage(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteMessage", repo.messages, id, errMessageNotFound)
}

func (repo *messageRepository) ReassignRepEmail(ctx context.Context, oldEmail, newEmail string) (int, error) {
	res, err := repo.messages.UpdateMany(ctx,
		bson.M{"recipient.type": message.ToRep, "recipient.id": oldEmail},
		bson.M{"$set": bson.M{"recipient.id": newEmail}},
	)
	if err != nil {
		return 0, core.NewPersistenceError("ReassignRepEmail", err)
	}
	// readBy is a set, so oldEmail appears at most once
	_, err = repo.messages.UpdateMany(ctx,
		bson.M{"readBy": oldEmail},
		bson.M{"$set": bson.M{"readBy.$": newEmail}},
	)
	if err != nil {
		return 0, core.NewPersistenceError("ReassignRepEmail", err)
	}
	return int(res.MatchedCount), nil
}

func (repo *messageRepository) CreateConversation(ctx context.Context, c message.Conversation) (message.Conversation, error) {
	if err := insert(ctx, "CreateConversation", repo.conversations, c); err != nil {
		return message.Conversation{}, err
	}
	return c, nil
}

func (repo *messageRepository) RecentConversations(ctx context.Context, limit int) ([]message.Conversation, error) {
	return findAll[message.Conversation](ctx, "RecentConversations", repo.conversations, bson.M{}, newestFirst("timestamp", limit))
}
