package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ethlas/builderhub/internal/domain/builder"
	"github.com/ethlas/builderhub/internal/observability"
)

const collection = "builders"

// builderDoc is the document shape persisted in the builders collection.
// The document ID carries the builder ID, so it is not a field.
type builderDoc struct {
	Email    string `firestore:"email"`
	FullName string `firestore:"full_name"`
	JoinDate int64  `firestore:"join_date"`
	Password string `firestore:"password"`
}

func toDoc(b builder.Builder) builderDoc {
	return builderDoc{
		Email:    b.Email,
		FullName: b.FullName,
		JoinDate: b.JoinDate,
		Password: b.PasswordHash,
	}
}

func (d builderDoc) toBuilder(id string) builder.Builder {
	return builder.Builder{
		ID:           id,
		Email:        d.Email,
		FullName:     d.FullName,
		JoinDate:     d.JoinDate,
		PasswordHash: d.Password,
	}
}

// BuildersRepo stores builder records in a Firestore collection, the
// managed document store the service was built around.
type BuildersRepo struct {
	client  *firestore.Client
	metrics *observability.Prom
}

// New connects to Firestore with a service-account credentials file.
func New(ctx context.Context, projectID, credentialsFile string, metrics *observability.Prom) (*BuildersRepo, error) {
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))

	if err != nil {
		return nil, err
	}

	return &BuildersRepo{client: client, metrics: metrics}, nil
}

func (r *BuildersRepo) Close() error {
	return r.client.Close()
}

func (r *BuildersRepo) Create(ctx context.Context, b builder.Builder) (string, error) {
	var id string

	err := r.metrics.ObserveStore("builders.create", func() error {
		ref, _, err := r.client.Collection(collection).Add(ctx, toDoc(b))

		if err != nil {
			return err
		}

		id = ref.ID

		return nil
	})

	if err != nil {
		return "", err
	}

	return id, nil
}

func (r *BuildersRepo) GetByID(ctx context.Context, id string) (builder.Builder, error) {
	var b builder.Builder

	err := r.metrics.ObserveStore("builders.get_by_id", func() error {
		snap, err := r.client.Collection(collection).Doc(id).Get(ctx)

		if err != nil {
			if status.Code(err) == codes.NotFound {
				return builder.ErrNotFound
			}

			return err
		}

		var doc builderDoc

		err = snap.DataTo(&doc)

		if err != nil {
			return err
		}

		b = doc.toBuilder(snap.Ref.ID)

		return nil
	})

	if err != nil {
		return builder.Builder{}, err
	}

	return b, nil
}

// GetByEmail runs the limit-1 query the whole email-uniqueness story
// rests on: at most one document is ever considered.
func (r *BuildersRepo) GetByEmail(ctx context.Context, email string) (builder.Builder, error) {
	var b builder.Builder

	err := r.metrics.ObserveStore("builders.get_by_email", func() error {
		iter := r.client.Collection(collection).
			Where("email", "==", email).
			Limit(1).
			Documents(ctx)
		defer iter.Stop()

		snap, err := iter.Next()

		if err == iterator.Done {
			return builder.ErrNotFound
		}

		if err != nil {
			return err
		}

		var doc builderDoc

		err = snap.DataTo(&doc)

		if err != nil {
			return err
		}

		b = doc.toBuilder(snap.Ref.ID)

		return nil
	})

	if err != nil {
		return builder.Builder{}, err
	}

	return b, nil
}

func (r *BuildersRepo) List(ctx context.Context, limit int) ([]builder.Builder, error) {
	out := make([]builder.Builder, 0, limit)

	err := r.metrics.ObserveStore("builders.list", func() error {
		iter := r.client.Collection(collection).
			OrderBy("join_date", firestore.Desc).
			Limit(limit).
			Documents(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()

			if err == iterator.Done {
				return nil
			}

			if err != nil {
				return err
			}

			var doc builderDoc

			err = snap.DataTo(&doc)

			if err != nil {
				return err
			}

			out = append(out, doc.toBuilder(snap.Ref.ID))
		}
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Update overwrites the whole document; the handler has already merged
// fields. Last writer wins on concurrent updates.
func (r *BuildersRepo) Update(ctx context.Context, id string, b builder.Builder) error {
	return r.metrics.ObserveStore("builders.update", func() error {
		ref := r.client.Collection(collection).Doc(id)

		// Set would create a missing document; keep update semantics
		// aligned with the other drivers by checking existence first.
		_, err := ref.Get(ctx)

		if err != nil {
			if status.Code(err) == codes.NotFound {
				return builder.ErrNotFound
			}

			return err
		}

		_, err = ref.Set(ctx, toDoc(b))

		return err
	})
}

func (r *BuildersRepo) Delete(ctx context.Context, id string) error {
	return r.metrics.ObserveStore("builders.delete", func() error {
		ref := r.client.Collection(collection).Doc(id)

		// Firestore deletes are no-ops on missing documents; surface
		// ErrNotFound so repeated deletes report cleanly.
		_, err := ref.Get(ctx)

		if err != nil {
			if status.Code(err) == codes.NotFound {
				return builder.ErrNotFound
			}

			return err
		}

		_, err = ref.Delete(ctx)

		return err
	})
}
