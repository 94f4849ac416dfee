package events

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TopicChanges carries store change notifications.
const TopicChanges = "chat.changes"

// SequenceNumberKey is the metadata key holding the publish order of a message.
const SequenceNumberKey = "sequence_number"

// PublisherManager fans a payload out to every publisher registered on a topic.
// Each outgoing payload gets a sequence number, in the order Publish was called.
type PublisherManager struct {
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.publishers[topic] = append(s.publishers[topic], pub)
}

// Publish encodes payload as JSON and sends it to all registered publishers.
// A failing publisher is logged and skipped.
func (s *PublisherManager) Publish(payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "could not encode event")
	}

	// held across the sends so subscribers see sequence numbers in order
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seq := s.sequenceNumber
	s.sequenceNumber++

	for topic, pubs := range s.publishers {
		for _, pub := range pubs {
			msg := message.NewMessage(watermill.NewUUID(), b)
			msg.Metadata.Set(SequenceNumberKey, strconv.FormatUint(seq, 10))
			if err := pub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish")
			}
		}
	}

	return nil
}

func (s *PublisherManager) PublishBlind(payload interface{}) {
	if err := s.Publish(payload); err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}

// SequenceNumber reads back the number Publish stamped on msg.
func SequenceNumber(msg *message.Message) (uint64, error) {
	v := msg.Metadata.Get(SequenceNumberKey)
	if v == "" {
		return 0, errors.New("message has no sequence number")
	}
	return strconv.ParseUint(v, 10, 64)
}
