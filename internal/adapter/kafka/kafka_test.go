package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	parent := int64(3)
	rec := domain.AlertRecord{
		ID:           4,
		ParentID:     &parent,
		ParentFullID: "urn:oid:2.49.0.1.840.0.ABC123.001.1",
		FullID:       "urn:oid:2.49.0.1.840.0.ABC123.002.1",
		Identifier:   "ABC123",
		Sequence:     "002",
		Version:      "1",
		Event:        "Tornado Warning",
		MessageType:  "Update",
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("ABC123"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "full_id", msg.Headers[0].Key)
	assert.Equal(t, []byte(rec.FullID), msg.Headers[0].Value)
	assert.Equal(t, "event", msg.Headers[1].Key)
	assert.Equal(t, []byte("Tornado Warning"), msg.Headers[1].Value)
	assert.Equal(t, "message_type", msg.Headers[2].Key)
	assert.Equal(t, []byte("Update"), msg.Headers[2].Value)

	var decoded domain.AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestWriter_PublishEmptyIsNoop(t *testing.T) {
	w := NewWriter(&config.Config{
		KafkaBrokers:   []string{"127.0.0.1:1"},
		KafkaSinkTopic: "nws-alerts",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	assert.NoError(t, w.Publish(context.Background(), nil))
}
