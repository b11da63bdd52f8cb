package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/crewdesk/automation/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {""}} {
		pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, brokers, "automation")

		assert.ErrorIs(t, err, kafka.ErrNoBrokers)
		assert.Nil(t, pub)
		assert.Nil(t, sub)
	}
}
