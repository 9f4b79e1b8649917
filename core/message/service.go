package message

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

type (
	// Filter selects messages. A nil Recipients does not restrict the result,
	// otherwise messages addressed to any of them are returned.
	Filter struct {
		Recipients []Recipient
	}

	// Repository stores messages and conversations. Messages are listed newest first.
	Repository interface {
		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		QueryMessages(ctx context.Context, filter Filter) ([]Message, error)
		// MarkRead adds email to the readBy set of every message in ids.
		MarkRead(ctx context.Context, email string, ids ...string) error
		DeleteMessage(ctx context.Context, id string) error
		// ReassignRepEmail moves the messages addressed to oldEmail, and its reads, to newEmail.
		ReassignRepEmail(ctx context.Context, oldEmail, newEmail string) (int, error)
		CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
		// RecentConversations returns the latest conversations, newest first.
		RecentConversations(ctx context.Context, limit int) ([]Conversation, error)
	}

	Service struct {
		validate *validator.Validate
		tx       core.Transactor
		repo     Repository
		users    user.Repository
		teachers school.TeacherRepository
		now      func() time.Time
	}
)

func NewService(
	validate *validator.Validate,
	tx core.Transactor,
	repo Repository,
	users user.Repository,
	teachers school.TeacherRepository,
) *Service {
	return &Service{
		validate: validate,
		tx:       tx,
		repo:     repo,
		users:    users,
		teachers: teachers,
		now:      time.Now,
	}
}

// CanAddress reports whether role may send messages to kind.
func CanAddress(role user.Role, kind RecipientKind) bool {
	switch role {
	case user.RoleAdmin:
		return kind.Valid()
	case user.RoleTeacher:
		return kind == ToRep || kind == AllReps
	case user.RoleRepresentative:
		return kind == ToTeacher
	default:
		return false
	}
}

// Send stores the message and its Conversation entry together.
func (svc *Service) Send(ctx context.Context, sender session.Identity, nm NewMessage) (Message, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Message{}, err
	}
	if !CanAddress(sender.Role, nm.Recipient.Kind) {
		return Message{}, core.NewValidationError(core.ErrForbidden, core.FieldError{
			Field: "recipient.type",
			Error: "no tiene permiso para escribir a este destinatario",
		})
	}

	msg := Message{
		ID:        core.NewID(),
		SenderID:  sender.UserID,
		Recipient: nm.Recipient,
		Subject:   nm.Subject,
		Body:      nm.Body,
		Timestamp: svc.now().UTC(),
		ReadBy:    []string{},
	}
	err := svc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := svc.checkRecipient(ctx, nm.Recipient); err != nil {
			return err
		}

		var err error
		if msg, err = svc.repo.CreateMessage(ctx, msg); err != nil {
			return errors.Wrap(err, "creating message")
		}
		_, err = svc.repo.CreateConversation(ctx, Conversation{
			ID:         core.NewID(),
			MessageID:  msg.ID,
			SenderID:   sender.UserID,
			SenderName: sender.FullName,
			Recipient:  msg.Recipient,
			Subject:    msg.Subject,
			Timestamp:  msg.Timestamp,
		})
		return errors.Wrap(err, "creating conversation")
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// checkRecipient makes sure a targeted recipient exists.
func (svc *Service) checkRecipient(ctx context.Context, r Recipient) error {
	notFound := core.NewValidationError(nil, core.FieldError{Field: "recipient.id", Error: "el destinatario no existe"})

	switch r.Kind {
	case ToTeacher:
		if _, err := svc.teachers.GetTeacherByID(ctx, r.ID); err != nil {
			if core.IsNotFound(err) {
				return notFound
			}
			return errors.Wrap(err, "getting teacher")
		}
	case ToRep:
		usr, err := svc.users.GetUserByEmail(ctx, r.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return notFound
			}
			return errors.Wrap(err, "getting representative")
		}
		if !usr.IsRepresentative() {
			return notFound
		}
	case AllTeachers, AllReps:
	}
	return nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.DeleteMessage(ctx, id), "deleting message")
}
