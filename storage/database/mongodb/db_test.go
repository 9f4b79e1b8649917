package mongodb

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

func TestPersistenceError(t *testing.T) {
	boom := errors.New("boom")

	assert.NoError(t, persistenceError("Op", nil, errUserNotFound))
	assert.True(t, core.IsNotFound(persistenceError("Op", mongo.ErrNoDocuments, errUserNotFound)))

	err := persistenceError("Op", boom, errUserNotFound)
	var pErr *core.PersistenceError
	if assert.True(t, errors.As(err, &pErr)) {
		assert.Equal(t, "Op", pErr.Op)
		assert.ErrorIs(t, err, boom)
	}

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, userError("CreateUser", dup), user.ErrEmailExists)
}

func TestRecordQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7)

	tests := []struct {
		name   string
		filter school.RecordFilter
		want   bson.M
	}{
		{"empty", school.RecordFilter{}, bson.M{}},
		{
			"students",
			school.RecordFilter{StudentIDs: []string{"s1"}},
			bson.M{"studentId": bson.M{"$in": []string{"s1"}}},
		},
		{
			"no students",
			school.RecordFilter{StudentIDs: []string{}},
			bson.M{"studentId": bson.M{"$in": []string{}}},
		},
		{
			"window",
			school.RecordFilter{Since: since, Until: until},
			bson.M{"date": bson.M{"$gte": since, "$lt": until}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recordQuery(tt.filter))
		})
	}
}

func TestStudentQuery(t *testing.T) {
	q := studentQuery(school.StudentFilter{RepresentativeUserID: "u1", RepresentativeEmail: "rep@x.com"})
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"$or": bson.A{
			bson.M{"representativeUserId": "u1"},
			bson.M{"representative.email": "rep@x.com"},
		}},
	}}, q)

	q = studentQuery(school.StudentFilter{Search: "  c.a  "})
	pattern := bson.M{"$regex": `c\.a`, "$options": "i"}
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"representative.name": pattern}}},
	}}, q)

	assert.Equal(t, bson.M{}, studentQuery(school.StudentFilter{}))
}

func TestRecipientsQuery(t *testing.T) {
	assert.Equal(t, bson.M{}, recipientsQuery(nil))

	q := recipientsQuery([]message.Recipient{
		{Kind: message.AllReps},
		{Kind: message.ToRep, ID: "rep@x.com"},
	})
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"recipient.type": message.AllReps},
		bson.M{"recipient.type": message.ToRep, "recipient.id": "rep@x.com"},
	}}, q)

	assert.Equal(t, bson.M{"id": bson.M{"$in": bson.A{}}}, recipientsQuery([]message.Recipient{}))
}

func TestTimezone(t *testing.T) {
	caracas, err := time.LoadLocation("America/Caracas")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	assert.Equal(t, "America/Caracas", timezone(caracas))
	assert.Equal(t, "UTC", timezone(time.UTC))
	assert.Equal(t, "UTC", timezone(nil))
	assert.Equal(t, "-04:00", timezone(time.FixedZone("", -4*3600)))
}
