package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/movian/movian-api/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPendingVerificationRepository struct{ coll *mongo.Collection }

func NewMongoPendingVerificationRepository(db *mongo.Database) PendingVerificationRepository {
	return &MongoPendingVerificationRepository{coll: db.Collection(MongoPendingCollection)}
}

func (r *MongoPendingVerificationRepository) Upsert(ctx context.Context, p *domain.PendingVerification) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	update := bson.M{
		"$set": bson.M{
			"username":      p.Username,
			"password_hash": p.PasswordHash,
			"dob":           p.DOB,
			"token":         p.Token,
			"expires_at":    p.ExpiresAt,
			"created_at":    p.CreatedAt,
		},
		"$setOnInsert": bson.M{"_id": p.ID},
	}
	opts := options.Update().SetUpsert(true)
	var err error
	// Two upserts racing on the same email can both miss and collide on the
	// unique index; the loser retries as a plain update.
	for attempt := 0; attempt < 2; attempt++ {
		_, err = r.coll.UpdateOne(ctx, bson.M{"email": p.Email}, update, opts)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return translateWriteErr(err)
}

func (r *MongoPendingVerificationRepository) FindByToken(ctx context.Context, token string) (*domain.PendingVerification, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *MongoPendingVerificationRepository) FindByEmail(ctx context.Context, email string) (*domain.PendingVerification, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoPendingVerificationRepository) findOne(ctx context.Context, filter bson.M) (*domain.PendingVerification, error) {
	var p domain.PendingVerification
	if err := r.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPendingNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoPendingVerificationRepository) DeleteByToken(ctx context.Context, token string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPendingNotFound
	}
	return nil
}

func (r *MongoPendingVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
