// Package firestore implements a durable SubscriptionStore on Google Cloud
// Firestore, so topic membership survives process restarts.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Store keeps one document per subscribed topic under
// installations/{installationID}/topics/{topicHash}.
type Store struct {
	client       *firestore.Client
	installation string
}

func NewStore(client *firestore.Client, installation string) *Store {
	return &Store{client: client, installation: installation}
}

// topicRecord is the internal DB representation.
type topicRecord struct {
	Topic     string    `firestore:"topic"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (s *Store) Add(ctx context.Context, topic string) error {
	record := topicRecord{
		Topic:     topic,
		UpdatedAt: time.Now(),
	}
	// Hash of the topic as Doc ID prevents duplicates and hot-spotting.
	_, err := s.topicRef(topic).Set(ctx, record)
	return err
}

func (s *Store) Remove(ctx context.Context, topic string) error {
	_, err := s.topicRef(topic).Delete(ctx)
	return err
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	iter := s.topicsCollection().Documents(ctx)
	defer iter.Stop()

	topics := make([]string, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record topicRecord
		if err := doc.DataTo(&record); err != nil {
			// Safe to skip corrupt rows; the record is re-created on the
			// next subscribe.
			continue
		}
		if record.Topic != "" {
			topics = append(topics, record.Topic)
		}
	}
	return topics, nil
}

func (s *Store) Clear(ctx context.Context) error {
	iter := s.topicsCollection().Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore iteration failed: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore delete failed: %w", err)
		}
	}
	return nil
}

// --- Helpers ---

func (s *Store) topicRef(topic string) *firestore.DocumentRef {
	return s.topicsCollection().Doc(hashTopic(topic))
}

func (s *Store) topicsCollection() *firestore.CollectionRef {
	return s.client.Collection("installations").Doc(s.installation).Collection("topics")
}

func hashTopic(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
