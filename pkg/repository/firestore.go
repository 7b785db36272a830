package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultFeedCollection is the collection holding the live feed
	DefaultFeedCollection = "feed_threats"

	// Field names
	fieldSeq = "seq"
)

// feedDoc is the stored form of one feed entry. Seq orders entries, newest
// has the highest value.
type feedDoc struct {
	Threat   model.Threat `firestore:"threat"`
	Seq      int64        `firestore:"seq"`
	PushedAt time.Time    `firestore:"pushed_at"`
}

// FirestoreOption is a functional option for configuring Firestore
type FirestoreOption func(*Firestore)

// WithCapacity sets the number of threats kept in the feed
func WithCapacity(capacity int) FirestoreOption {
	return func(f *Firestore) {
		if capacity > 0 {
			f.capacity = capacity
		}
	}
}

// WithCollection overrides the feed collection name
func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		if name != "" {
			f.collection = name
		}
	}
}

// Firestore implements FeedRepository with Firestore
type Firestore struct {
	client     *firestore.Client
	collection string
	capacity   int
	now        func() time.Time
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (interfaces.FeedRepository, error) {
	logger := ctxlog.From(ctx)

	f := &Firestore{
		collection: DefaultFeedCollection,
		capacity:   DefaultFeedCapacity,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	// Create client with database ID
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	// Fail fast on invalid project or missing permissions
	_, err = client.Collection(f.collection).Limit(1).Documents(ctx).Next()
	if err != nil && err != iterator.Done {
		if status.Code(err) == codes.PermissionDenied || status.Code(err) == codes.Unauthenticated {
			_ = client.Close()
			return nil, goerr.Wrap(err, "failed to connect to firestore project",
				goerr.V("firestore error code", status.Code(err).String()),
			)
		}
		logger.Debug("Firestore connection test returned error (may be empty collection)",
			"error", err,
			"errorCode", status.Code(err).String(),
		)
	}

	logger.Info("Firestore feed repository initialized",
		"projectID", projectID,
		"databaseID", databaseID,
		"collection", f.collection,
		"capacity", f.capacity,
	)

	f.client = client
	return f, nil
}

// PushThreats adds threats to the head of the feed and trims entries beyond
// capacity. A threat whose ID is already stored moves to the head.
func (f *Firestore) PushThreats(ctx context.Context, threats ...*model.Threat) error {
	if err := checkThreats(threats); err != nil {
		return err
	}
	threats = dedupe(threats)
	if len(threats) == 0 {
		return nil
	}

	if err := f.write(ctx, threats); err != nil {
		return err
	}
	return f.trim(ctx)
}

// ReplaceThreats deletes every feed entry and stores threats in their place
func (f *Firestore) ReplaceThreats(ctx context.Context, threats []*model.Threat) error {
	if err := checkThreats(threats); err != nil {
		return err
	}

	if err := f.deleteFrom(ctx, f.client.Collection(f.collection).Query); err != nil {
		return goerr.Wrap(err, "failed to clear feed")
	}

	threats = dedupe(threats)
	if len(threats) > f.capacity {
		threats = threats[:f.capacity]
	}
	if len(threats) == 0 {
		return nil
	}
	return f.write(ctx, threats)
}

// ListThreats lists threats newest first
func (f *Firestore) ListThreats(ctx context.Context, limit int) ([]*model.Threat, error) {
	query := f.client.Collection(f.collection).OrderBy(fieldSeq, firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var threats []*model.Threat
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate feed threats")
		}

		var entry feedDoc
		if err := doc.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode feed threat", goerr.V("docID", doc.Ref.ID))
		}
		threat := entry.Threat
		threats = append(threats, &threat)
	}

	return threats, nil
}

// Close closes the Firestore client
func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// write stores threats so that threats[0] carries the highest sequence number
func (f *Firestore) write(ctx context.Context, threats []*model.Threat) error {
	now := f.now()
	base := now.UnixNano()

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(threats))
	for i, t := range threats {
		entry := feedDoc{
			Threat:   *t,
			Seq:      base + int64(len(threats)-1-i),
			PushedAt: now,
		}
		ref := f.client.Collection(f.collection).Doc(t.ID)
		job, err := bw.Set(ref, entry)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue feed threat", goerr.V("id", t.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to save feed threat", goerr.V("id", threats[i].ID))
		}
	}
	return nil
}

// trim deletes entries older than the newest capacity ones
func (f *Firestore) trim(ctx context.Context) error {
	query := f.client.Collection(f.collection).
		OrderBy(fieldSeq, firestore.Desc).
		Offset(f.capacity)

	if err := f.deleteFrom(ctx, query); err != nil {
		return goerr.Wrap(err, "failed to trim feed", goerr.V("capacity", f.capacity))
	}
	return nil
}

func (f *Firestore) deleteFrom(ctx context.Context, query firestore.Query) error {
	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate feed threats")
		}

		if _, err := doc.Ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to delete feed threat", goerr.V("docID", doc.Ref.ID))
		}
	}
}
