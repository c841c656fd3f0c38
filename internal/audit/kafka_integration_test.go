//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"taxportal/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSinkSuite(t *testing.T) {
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetKafka(s.T()).Brokers
}

func (s *KafkaSinkSuite) TestProducesKeyedEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "taxportal.audit.test"
	sink, err := NewKafkaSink(s.brokers, topic)
	s.Require().NoError(err)
	defer sink.Close()

	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1), "second ensure is a no-op")

	s.Require().NoError(sink.Write(ctx, Event{
		Action:  ActionCompleted,
		Wizard:  "lbtt-return",
		Session: "s1",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	s.Equal("lbtt-return:s1", string(records[0].Key))
	var got Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(ActionCompleted, got.Action)
}
