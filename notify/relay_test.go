package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
)

type fakeStore struct {
	pending []Message
	sent    []string
	failed  []string
}

func (f *fakeStore) NextBatch(ctx context.Context, limit int) ([]Message, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeProducer struct {
	sent    []*sarama.ProducerMessage
	failKey string
}

func (f *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if key, _ := msg.Key.Encode(); string(key) == f.failKey {
		return 0, 0, errors.New("broker unavailable")
	}
	f.sent = append(f.sent, msg)
	return 0, int64(len(f.sent)), nil
}

func (f *fakeProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	panic("not implemented")
}

func (f *fakeProducer) Close() error { return nil }

func (f *fakeProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	panic("not implemented")
}

func (f *fakeProducer) IsTransactional() bool { return false }

func (f *fakeProducer) BeginTxn() error { panic("not implemented") }

func (f *fakeProducer) CommitTxn() error { panic("not implemented") }

func (f *fakeProducer) AbortTxn() error { panic("not implemented") }

func (f *fakeProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	panic("not implemented")
}

func (f *fakeProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	panic("not implemented")
}

func TestDrain_PublishesPendingMessages(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{ID: "m1", Topic: TopicAccessGranted, Payload: []byte(`{"user_id":42}`)},
		{ID: "m2", Topic: TopicPaymentPending, Payload: []byte(`{"user_id":43}`)},
	}}
	producer := &fakeProducer{}

	relay := NewRelay(store, producer)
	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(producer.sent) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(producer.sent))
	}
	if producer.sent[0].Topic != TopicAccessGranted {
		t.Errorf("unexpected topic %q", producer.sent[0].Topic)
	}
	if len(store.sent) != 2 || store.sent[0] != "m1" || store.sent[1] != "m2" {
		t.Errorf("unexpected sent marks: %v", store.sent)
	}
	if len(store.failed) != 0 {
		t.Errorf("expected no failures, got %v", store.failed)
	}
}

func TestDrain_FailedPublishStaysPending(t *testing.T) {
	store := &fakeStore{pending: []Message{
		{ID: "m1", Topic: TopicAccessGranted, Payload: []byte(`{}`)},
		{ID: "m2", Topic: TopicAccessGranted, Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failKey: "m1"}

	relay := NewRelay(store, producer)
	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.failed) != 1 || store.failed[0] != "m1" {
		t.Errorf("expected m1 marked failed, got %v", store.failed)
	}
	if len(store.sent) != 1 || store.sent[0] != "m2" {
		t.Errorf("expected m2 still delivered, got %v", store.sent)
	}
}

func TestDrain_EmptyOutbox(t *testing.T) {
	producer := &fakeProducer{}
	relay := NewRelay(&fakeStore{}, producer)

	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producer.sent) != 0 {
		t.Errorf("expected nothing published, got %d", len(producer.sent))
	}
}
