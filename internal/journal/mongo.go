package journal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lunara/internal/database"
	"lunara/internal/models"
)

const mongoOpTimeout = 5 * time.Second

// Mongo journals sessions as one document each, pushing log and turn
// events onto embedded arrays. Enabled when MONGODB_URI is set.
type Mongo struct {
	db *database.MongoDB
}

// NewMongo wraps a connected MongoDB client.
func NewMongo(db *database.MongoDB) *Mongo {
	return &Mongo{db: db}
}

type mongoLog struct {
	Seq             int                 `bson:"seq"`
	Timestamp       time.Time           `bson:"timestamp"`
	Record          models.HealthRecord `bson:"record"`
	HasMissingData  bool                `bson:"hasMissingData"`
	UnusualSymptoms bool                `bson:"unusualSymptoms"`
}

type mongoTurn struct {
	Seq       int       `bson:"seq"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

type mongoSession struct {
	ID        string              `bson:"_id"`
	StartTime time.Time           `bson:"startTime"`
	EndTime   *time.Time          `bson:"endTime,omitempty"`
	Status    string              `bson:"status"`
	State     string              `bson:"state"`
	UserTurns int                 `bson:"userTurns"`
	Record    models.HealthRecord `bson:"record"`
	Logs      []mongoLog          `bson:"logs"`
	Turns     []mongoTurn         `bson:"turns"`
	UpdatedAt time.Time           `bson:"updatedAt"`
}

func (j *Mongo) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoOpTimeout)
}

func (j *Mongo) SessionStarted(s *models.Session) error {
	ctx, cancel := j.opCtx()
	defer cancel()

	doc := mongoSession{
		ID:        s.ID,
		StartTime: s.StartTime,
		Status:    string(s.Status),
		State:     s.State,
		UserTurns: s.UserTurns,
		Record:    s.Record,
		Logs:      []mongoLog{},
		Turns:     []mongoTurn{},
		UpdatedAt: time.Now().UTC(),
	}
	_, err := j.db.Collection(database.CollectionSessions).
		ReplaceOne(ctx, bson.M{"_id": s.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (j *Mongo) ProgressSaved(s *models.Session) error {
	ctx, cancel := j.opCtx()
	defer cancel()

	_, err := j.db.Collection(database.CollectionSessions).UpdateOne(ctx,
		bson.M{"_id": s.ID},
		bson.M{"$set": bson.M{
			"state":     s.State,
			"userTurns": s.UserTurns,
			"record":    s.Record,
			"updatedAt": time.Now().UTC(),
		}},
	)
	return err
}

func (j *Mongo) LogAppended(sessionID string, seq int, entry models.LogEntry) error {
	ctx, cancel := j.opCtx()
	defer cancel()

	_, err := j.db.Collection(database.CollectionSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$push": bson.M{"logs": mongoLog{
				Seq:             seq,
				Timestamp:       entry.Timestamp,
				Record:          entry.Record,
				HasMissingData:  entry.HasMissingData,
				UnusualSymptoms: entry.UnusualSymptoms,
			}},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	return err
}

func (j *Mongo) TurnAppended(sessionID string, seq int, turn models.ConversationTurn) error {
	ctx, cancel := j.opCtx()
	defer cancel()

	_, err := j.db.Collection(database.CollectionSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$push": bson.M{"turns": mongoTurn{
				Seq:       seq,
				Role:      turn.Role,
				Content:   turn.Content,
				Timestamp: turn.Timestamp,
			}},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	return err
}

func (j *Mongo) SessionEnded(sessionID string, endTime time.Time) error {
	ctx, cancel := j.opCtx()
	defer cancel()

	_, err := j.db.Collection(database.CollectionSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{
			"status":    string(models.SessionCompleted),
			"endTime":   endTime,
			"updatedAt": time.Now().UTC(),
		}},
	)
	return err
}

// Restore loads every journaled session. Log and turn arrays were pushed
// in order, so append order is preserved as stored.
func (j *Mongo) Restore() ([]*models.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cursor, err := j.db.Collection(database.CollectionSessions).
		Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.Session
	for cursor.Next(ctx) {
		var doc mongoSession
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}

		sess := &models.Session{
			ID:           doc.ID,
			StartTime:    doc.StartTime,
			EndTime:      doc.EndTime,
			LastActivity: doc.UpdatedAt,
			Status:       models.SessionStatus(doc.Status),
			State:        doc.State,
			Record:       doc.Record,
			UserTurns:    doc.UserTurns,
		}
		for _, l := range doc.Logs {
			sess.Logs = append(sess.Logs, models.LogEntry{
				Timestamp:       l.Timestamp,
				Record:          l.Record,
				HasMissingData:  l.HasMissingData,
				UnusualSymptoms: l.UnusualSymptoms,
			})
		}
		for _, t := range doc.Turns {
			sess.Conversation = append(sess.Conversation, models.ConversationTurn{
				Role:      t.Role,
				Content:   t.Content,
				Timestamp: t.Timestamp,
			})
		}
		sessions = append(sessions, sess)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (j *Mongo) Close() error {
	ctx, cancel := j.opCtx()
	defer cancel()
	return j.db.Close(ctx)
}
