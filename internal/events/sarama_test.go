package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaramaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	publisher := NewSaramaPublisherFromProducer(producer, "donations")

	requestID := "req-1"
	event := DonationEvent{
		Type:          DonationCompleted,
		DonationID:    "don-1",
		TransactionID: "TXN1",
		PaymentID:     "pay_1",
		RequestID:     &requestID,
		Amount:        50000,
		Currency:      "INR",
	}

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got DonationEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.PaymentID != "pay_1" || got.Amount != 50000 || got.Type != DonationCompleted {
			return fmt.Errorf("unexpected event %+v", got)
		}
		return nil
	})
	require.NoError(t, publisher.Publish(context.Background(), event))

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := publisher.Publish(context.Background(), event)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	assert.Contains(t, err.Error(), "donation.completed")

	require.NoError(t, publisher.Close())
}

func TestNewSaramaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewSaramaPublisher(SaramaConfig{})
	assert.Error(t, err)
}

func TestRecordingPublisher(t *testing.T) {
	p := &RecordingPublisher{}
	require.NoError(t, p.Publish(context.Background(), DonationEvent{Type: DonationRefunded}))
	p.Err = errors.New("down")
	assert.Error(t, p.Publish(context.Background(), DonationEvent{Type: DonationFailed}))
	assert.Len(t, p.Events(), 1)
}
