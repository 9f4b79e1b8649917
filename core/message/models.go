package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

// RecipientKind is the closed set of audiences a Message can address.
type RecipientKind string

const (
	AllTeachers RecipientKind = "all-teachers"
	AllReps     RecipientKind = "all-reps"
	ToTeacher   RecipientKind = "teacher" // Recipient.ID is a teacher id
	ToRep       RecipientKind = "rep"     // Recipient.ID is a representative email
)

func (k RecipientKind) Valid() bool {
	switch k {
	case AllTeachers, AllReps, ToTeacher, ToRep:
		return true
	default:
		return false
	}
}

// Targeted reports whether the kind addresses a single recipient named by Recipient.ID.
func (k RecipientKind) Targeted() bool {
	switch k {
	case ToTeacher, ToRep:
		return true
	case AllTeachers, AllReps:
		return false
	default:
		return false
	}
}

type Recipient struct {
	Kind RecipientKind `bson:"type" json:"type" validate:"required,recipientkind"`
	ID   string        `bson:"id,omitempty" json:"id,omitempty"`
}

type Message struct {
	ID        string    `bson:"id" json:"id"`
	SenderID  string    `bson:"senderId" json:"senderId"`
	Recipient Recipient `bson:"recipient" json:"recipient"`
	Subject   string    `bson:"subject" json:"subject"`
	Body      string    `bson:"body" json:"body"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"` // UTC
	ReadBy    []string  `bson:"readBy" json:"readBy"`       // emails
}

// IsReadBy reports whether email is in m.ReadBy.
func (m *Message) IsReadBy(email string) bool {
	return core.ContainsString(m.ReadBy, email)
}

// Conversation is the dashboard trace of a sent Message.
type Conversation struct {
	ID         string    `bson:"id" json:"id"`
	MessageID  string    `bson:"messageId" json:"messageId"`
	SenderID   string    `bson:"senderId" json:"senderId"`
	SenderName string    `bson:"senderName" json:"senderName"`
	Recipient  Recipient `bson:"recipient" json:"recipient"`
	Subject    string    `bson:"subject" json:"subject"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"` // UTC
}

// NewMessage contains information needed to send a Message.
type NewMessage struct {
	Recipient Recipient `json:"recipient"`
	Subject   string    `json:"subject" validate:"required,notblank,max=200"`
	Body      string    `json:"body" validate:"required,notblank,max=10000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Subject = core.CleanString(nm.Subject)
	nm.Body = core.CleanString(nm.Body)
	nm.Recipient.Kind = RecipientKind(core.CleanString(string(nm.Recipient.Kind), true /* lower */))
	nm.Recipient.ID = core.CleanString(nm.Recipient.ID)
	switch nm.Recipient.Kind {
	case ToRep:
		nm.Recipient.ID = core.CleanString(nm.Recipient.ID, true /* lower */)
	case AllTeachers, AllReps:
		nm.Recipient.ID = ""
	}

	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Recipient.Kind.Targeted() && nm.Recipient.ID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "recipient.id", Error: "debe indicar el destinatario"})
	}
	return nil
}
