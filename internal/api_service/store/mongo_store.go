package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
)

// WorkflowStore defines the interface for workflow persistence.
type WorkflowStore interface {
	Create(ctx context.Context, wf *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.Workflow, error)
	Update(ctx context.Context, wf *models.Workflow) error
}

// MongoWorkflowStore is an implementation of WorkflowStore using MongoDB.
type MongoWorkflowStore struct {
	collection *mongo.Collection
}

// NewMongoWorkflowStore creates a new MongoWorkflowStore.
func NewMongoWorkflowStore(db *mongo.Database, collectionName string) *MongoWorkflowStore {
	return &MongoWorkflowStore{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new workflow document.
func (s *MongoWorkflowStore) Create(ctx context.Context, wf *models.Workflow) error {
	_, err := s.collection.InsertOne(ctx, wf)
	return err
}

// GetByID retrieves a workflow by its ID. Returns nil when not found.
func (s *MongoWorkflowStore) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&wf)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

// GetByUserID retrieves a paginated list of workflows for a user,
// newest first.
func (s *MongoWorkflowStore) GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.Workflow, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var workflows []*models.Workflow
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	opts.SetSkip(int64((page - 1) * limit))
	opts.SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

// Update persists the mutable portion of a workflow snapshot.
func (s *MongoWorkflowStore) Update(ctx context.Context, wf *models.Workflow) error {
	filter := bson.M{"_id": wf.ID}
	update := bson.M{
		"$set": bson.M{
			"status":        wf.Status,
			"subtasks":      wf.SubTasks,
			"assignments":   wf.Assignments,
			"replan_count":  wf.ReplanCount,
			"error":         wf.Error,
			"completed_at":  wf.CompletedAt,
			"last_progress": wf.LastProgress,
		},
	}
	_, err := s.collection.UpdateOne(ctx, filter, update)
	return err
}
