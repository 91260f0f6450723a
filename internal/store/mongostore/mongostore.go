// Copyright 2026 The bluestreak-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mongostore is the canonical Store Gateway backend. The engine's
// persistence needs ($setOnInsert-style upserts, compound indexes, an
// atomic conditional claim) map directly onto MongoDB's document model,
// so ClaimDue is a single FindOneAndUpdate call.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ferromir/bluestreak-go/internal/store"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Default collection names.
const (
	DefaultWorkflowsCollection = "workflows"
	DefaultStepsCollection     = "steps"
	DefaultNapsCollection      = "naps"
)

// Store is a MongoDB-backed store.Store implementation.
type Store struct {
	client    *mongo.Client
	workflows *mongo.Collection
	steps     *mongo.Collection
	naps      *mongo.Collection
}

// workflowDoc is the instances-collection document, field names fixed so
// independent engines sharing one database stay wire-compatible.
type workflowDoc struct {
	WorkflowID string    `bson:"workflowId"`
	HandlerID  string    `bson:"handlerId"`
	Input      any       `bson:"input"`
	Failures   int       `bson:"failures"`
	Status     string    `bson:"status"`
	TimeoutAt  time.Time `bson:"timeoutAt"`
	Result     any       `bson:"result,omitempty"`
}

type stepDoc struct {
	WorkflowID string `bson:"workflowId"`
	StepID     string `bson:"stepId"`
	Output     any    `bson:"output"`
}

type napDoc struct {
	WorkflowID string    `bson:"workflowId"`
	NapID      string    `bson:"napId"`
	WakeUpAt   time.Time `bson:"wakeUpAt"`
}

// Connect dials dbURL and returns a Store bound to dbName, using the
// schema's default collection names.
func Connect(ctx context.Context, dbURL, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(dbURL))
	if err != nil {
		return nil, store.IOError("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, store.IOError("connect", err)
	}

	db := client.Database(dbName)
	return &Store{
		client:    client,
		workflows: db.Collection(DefaultWorkflowsCollection),
		steps:     db.Collection(DefaultStepsCollection),
		naps:      db.Collection(DefaultNapsCollection),
	}, nil
}

// EnsureIndexes creates the unique index on {workflowId}, the compound
// index on {status, timeoutAt}, and the unique {workflowId, stepId} and
// {workflowId, napId} indexes on the steps and naps collections.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.workflows.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workflowId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "timeoutAt", Value: 1}},
		},
	}); err != nil {
		return store.IOError("ensureIndexes", err)
	}

	if _, err := s.steps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "workflowId", Value: 1}, {Key: "stepId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return store.IOError("ensureIndexes", err)
	}

	if _, err := s.naps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "workflowId", Value: 1}, {Key: "napId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return store.IOError("ensureIndexes", err)
	}

	return nil
}

func (s *Store) InsertInstance(ctx context.Context, workflowID, handlerID string, input any, now time.Time) error {
	_, err := s.workflows.InsertOne(ctx, workflowDoc{
		WorkflowID: workflowID,
		HandlerID:  handlerID,
		Input:      input,
		Failures:   0,
		Status:     string(store.StatusIdle),
		TimeoutAt:  now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.AlreadyExists("insertInstance", err)
		}
		return store.IOError("insertInstance", err)
	}
	return nil
}

// ClaimDue is the one operation on which the whole system's correctness
// rests: a single FindOneAndUpdate atomically selects a claimable,
// past-due instance and flips it to running with a fresh lease.
func (s *Store) ClaimDue(ctx context.Context, now, newTimeoutAt time.Time) (string, error) {
	filter := bson.M{
		"status":    bson.M{"$in": []string{string(store.StatusIdle), string(store.StatusRunning), string(store.StatusFailed)}},
		"timeoutAt": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{"status": string(store.StatusRunning), "timeoutAt": newTimeoutAt},
	}

	var doc workflowDoc
	err := s.workflows.FindOneAndUpdate(ctx, filter, update).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		return "", store.IOError("claimDue", err)
	}
	return doc.WorkflowID, nil
}

func (s *Store) FindRunData(ctx context.Context, workflowID string) (store.RunData, error) {
	var doc workflowDoc
	err := s.workflows.FindOne(ctx, bson.M{"workflowId": workflowID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return store.RunData{}, store.NotFound("findRunData")
		}
		return store.RunData{}, store.IOError("findRunData", err)
	}
	return store.RunData{HandlerID: doc.HandlerID, Input: doc.Input, Failures: doc.Failures}, nil
}

func (s *Store) FindStatusAndResult(ctx context.Context, workflowID string) (store.StatusResult, error) {
	var doc workflowDoc
	err := s.workflows.FindOne(ctx, bson.M{"workflowId": workflowID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return store.StatusResult{}, store.NotFound("findStatusAndResult")
		}
		return store.StatusResult{}, store.IOError("findStatusAndResult", err)
	}
	return store.StatusResult{Status: store.Status(doc.Status), Result: doc.Result}, nil
}

func (s *Store) MarkFinished(ctx context.Context, workflowID string, result any) error {
	return s.update(ctx, "markFinished", workflowID, bson.M{
		"$set": bson.M{"status": string(store.StatusFinished), "result": result},
	})
}

func (s *Store) MarkFailure(ctx context.Context, workflowID string, newStatus store.Status, newTimeoutAt time.Time, newFailures int) error {
	return s.update(ctx, "markFailure", workflowID, bson.M{
		"$set": bson.M{"status": string(newStatus), "timeoutAt": newTimeoutAt, "failures": newFailures},
	})
}

func (s *Store) ExtendLease(ctx context.Context, workflowID string, newTimeoutAt time.Time) error {
	return s.update(ctx, "extendLease", workflowID, bson.M{
		"$set": bson.M{"timeoutAt": newTimeoutAt},
	})
}

func (s *Store) update(ctx context.Context, op, workflowID string, update bson.M) error {
	res, err := s.workflows.UpdateOne(ctx, bson.M{"workflowId": workflowID}, update)
	if err != nil {
		return store.IOError(op, err)
	}
	if res.MatchedCount == 0 {
		return store.NotFound(op)
	}
	return nil
}

func (s *Store) FindStepOutput(ctx context.Context, workflowID, stepID string) (any, bool, error) {
	var doc stepDoc
	err := s.steps.FindOne(ctx, bson.M{"workflowId": workflowID, "stepId": stepID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, store.IOError("findStepOutput", err)
	}
	return doc.Output, true, nil
}

// PutStepOutput is an insert-only upsert: $setOnInsert means a matching
// document already present is left completely untouched.
func (s *Store) PutStepOutput(ctx context.Context, workflowID, stepID string, output any) error {
	filter := bson.M{"workflowId": workflowID, "stepId": stepID}
	update := bson.M{"$setOnInsert": stepDoc{WorkflowID: workflowID, StepID: stepID, Output: output}}
	_, err := s.steps.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return store.IOError("putStepOutput", err)
	}
	return nil
}

func (s *Store) FindNapWake(ctx context.Context, workflowID, napID string) (time.Time, bool, error) {
	var doc napDoc
	err := s.naps.FindOne(ctx, bson.M{"workflowId": workflowID, "napId": napID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, store.IOError("findNapWake", err)
	}
	return doc.WakeUpAt, true, nil
}

// PutNapWake is an insert-only upsert, same rationale as PutStepOutput: the
// wake instant committed on first entry must never be revised.
func (s *Store) PutNapWake(ctx context.Context, workflowID, napID string, wakeUpAt time.Time) error {
	filter := bson.M{"workflowId": workflowID, "napId": napID}
	update := bson.M{"$setOnInsert": napDoc{WorkflowID: workflowID, NapID: napID, WakeUpAt: wakeUpAt}}
	_, err := s.naps.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return store.IOError("putNapWake", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
