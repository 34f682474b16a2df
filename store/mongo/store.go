// Package mongo implements store.Store on MongoDB through the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/loanbook"
	"github.com/xraph/loanbook/id"
	"github.com/xraph/loanbook/loan"
	"github.com/xraph/loanbook/payment"
	loanstore "github.com/xraph/loanbook/store"
)

// Collection name constants.
const (
	colLoans = "loanbook_loans"
)

// compile-time interface check
var _ loanstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Payments are embedded in their loan document. Recording one and adjusting
// the balance is a single-document pipeline update, which MongoDB applies
// atomically.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all loanbook collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("loanbook/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Loan Store ====================

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	m := toLoanModel(l)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return loanbook.ErrAlreadyExists
		}
		return fmt.Errorf("loanbook/mongo: create loan: %w", err)
	}
	return nil
}

func (s *Store) GetLoan(ctx context.Context, ownerID string, loanID id.LoanID) (*loan.Loan, error) {
	var m loanModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": loanID.String(), "owner_id": ownerID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, loanbook.ErrLoanNotFound
		}
		return nil, fmt.Errorf("loanbook/mongo: get loan: %w", err)
	}
	return fromLoanModel(&m)
}

func (s *Store) ListLoans(ctx context.Context, ownerID string, opts loan.ListOpts) ([]*loan.Loan, error) {
	var models []loanModel

	filter := bson.M{"owner_id": ownerID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Direction != "" {
		filter["direction"] = string(opts.Direction)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("loanbook/mongo: list loans: %w", err)
	}

	result := make([]*loan.Loan, len(models))
	for i := range models {
		l, err := fromLoanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// UpdateLoan applies the non-nil fields of u. A principal change is a
// pipeline update so remaining is computed from the stored paid total.
func (s *Store) UpdateLoan(ctx context.Context, ownerID string, loanID id.LoanID, u loan.Update) (*loan.Loan, error) {
	t := u.UpdatedAt
	if t.IsZero() {
		t = now()
	}

	set := bson.D{{Key: "updated_at", Value: t}}
	if u.PersonName != nil {
		set = append(set, bson.E{Key: "person_name", Value: *u.PersonName})
	}
	if u.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *u.Description})
	}
	if u.Direction != nil {
		set = append(set, bson.E{Key: "direction", Value: string(*u.Direction)})
	}
	if u.Principal != nil {
		owing := bson.M{"$subtract": bson.A{u.Principal.Amount, "$paid"}}
		set = append(set,
			bson.E{Key: "principal", Value: u.Principal.Amount},
			bson.E{Key: "remaining", Value: bson.M{"$max": bson.A{0, owing}}},
			bson.E{Key: "status", Value: bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{owing, 0}}, string(loan.StatusActive), string(loan.StatusSettled)}}},
		)
	}

	var m loanModel
	err := s.mdb.Collection(colLoans).FindOneAndUpdate(ctx,
		bson.M{"_id": loanID.String(), "owner_id": ownerID},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, loanbook.ErrLoanNotFound
		}
		return nil, fmt.Errorf("loanbook/mongo: update loan: %w", err)
	}
	return fromLoanModel(&m)
}

func (s *Store) DeleteLoan(ctx context.Context, ownerID string, loanID id.LoanID) error {
	res, err := s.mdb.NewDelete((*loanModel)(nil)).
		Filter(bson.M{"_id": loanID.String(), "owner_id": ownerID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("loanbook/mongo: delete loan: %w", err)
	}
	if res.DeletedCount() == 0 {
		return loanbook.ErrLoanNotFound
	}
	return nil
}

// ==================== Payment Store ====================

// RecordPayment appends the payment and decrements the balance in one
// update. The filter only matches while something is outstanding.
func (s *Store) RecordPayment(ctx context.Context, ownerID string, p *payment.Payment) (*loan.Loan, error) {
	amount := p.Amount.Amount
	left := bson.M{"$subtract": bson.A{"$remaining", amount}}

	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "paid", Value: bson.M{"$add": bson.A{"$paid", amount}}},
		{Key: "remaining", Value: bson.M{"$max": bson.A{0, left}}},
		{Key: "status", Value: bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{left, 0}}, string(loan.StatusActive), string(loan.StatusSettled)}}},
		{Key: "updated_at", Value: p.CreatedAt},
		{Key: "payments", Value: bson.M{"$concatArrays": bson.A{
			bson.M{"$ifNull": bson.A{"$payments", bson.A{}}},
			bson.A{bson.M{"$literal": toPaymentModel(p)}},
		}}},
	}}}}

	var m loanModel
	err := s.mdb.Collection(colLoans).FindOneAndUpdate(ctx,
		bson.M{"_id": p.LoanID.String(), "owner_id": ownerID, "remaining": bson.M{"$gt": 0}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if !isNoDocuments(err) {
			return nil, fmt.Errorf("loanbook/mongo: record payment: %w", err)
		}
		if _, err := s.GetLoan(ctx, ownerID, p.LoanID); err != nil {
			return nil, err
		}
		return nil, loanbook.ErrLoanSettled
	}
	return fromLoanModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, loanID id.LoanID, opts payment.ListOpts) ([]*payment.Payment, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"_id": loanID.String()}},
		bson.M{"$unwind": "$payments"},
		bson.M{"$replaceRoot": bson.M{"newRoot": "$payments"}},
		bson.M{"$sort": bson.D{{Key: "payment_date", Value: -1}, {Key: "created_at", Value: -1}}},
	}
	if opts.Offset > 0 {
		pipeline = append(pipeline, bson.M{"$skip": int64(opts.Offset)})
	}
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": int64(opts.Limit)})
	}

	cursor, err := s.mdb.Collection(colLoans).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("loanbook/mongo: list payments: %w", err)
	}
	defer cursor.Close(ctx)

	var models []paymentModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("loanbook/mongo: list payments decode: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all loanbook collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLoans: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "direction", Value: 1}}},
		},
	}
}
